package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog"

	"pension/internal/api"
	"pension/internal/domain"
	"pension/internal/ports"
)

const dateLayout = "2006-01-02"

// Server implements the generated StrictServerInterface.
type Server struct {
	opener   ports.AccountOpener
	accounts ports.AccountFinder
	log      zerolog.Logger
}

func New(opener ports.AccountOpener, accounts ports.AccountFinder, log zerolog.Logger) *Server {
	return &Server{opener: opener, accounts: accounts, log: log.With().Str("component", "http").Logger()}
}

// Routes returns a chi.Router mounting the generated handlers.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	handler := api.NewStrictHandlerWithOptions(s, nil, api.StrictHTTPServerOptions{
		RequestErrorHandlerFunc:  s.requestError,
		ResponseErrorHandlerFunc: s.responseError,
	})
	api.HandlerFromMux(handler, r)
	return r
}

func (s *Server) GetHealthz(ctx context.Context, _ api.GetHealthzRequestObject) (api.GetHealthzResponseObject, error) {
	ok := "ok"
	return api.GetHealthz200JSONResponse{Status: &ok}, nil
}

func (s *Server) OpenAccount(ctx context.Context, req api.OpenAccountRequestObject) (api.OpenAccountResponseObject, error) {
	if req.Body == nil {
		return api.OpenAccount400JSONResponse{Error: "missing body"}, nil
	}
	body := trimRequest(*req.Body)
	if fields := validateRequest(body); len(fields) > 0 {
		return api.OpenAccount400JSONResponse{Error: "invalid request", Details: &fields}, nil
	}
	dob, err := time.Parse(dateLayout, body.DateOfBirth)
	if err != nil {
		return api.OpenAccount400JSONResponse{Error: "date_of_birth must be YYYY-MM-DD"}, nil
	}

	status, err := s.opener.OpenAccount(ctx, body.FirstName, body.LastName, body.TaxId, dob)
	if err != nil {
		s.log.Error().Err(err).Str("request_id", middleware.GetReqID(ctx)).Msg("open account failed")
		return api.OpenAccount500JSONResponse{Error: "account opening failed"}, nil
	}
	return api.OpenAccount200JSONResponse{Status: api.OpenAccountResponseStatus(status)}, nil
}

func (s *Server) GetAccount(ctx context.Context, req api.GetAccountRequestObject) (api.GetAccountResponseObject, error) {
	acc, err := s.accounts.FindAccount(ctx, req.ReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return api.GetAccount404JSONResponse{Error: "not found"}, nil
		}
		s.log.Error().Err(err).Str("request_id", middleware.GetReqID(ctx)).Msg("find account failed")
		return api.GetAccount500JSONResponse{Error: "lookup failed"}, nil
	}
	return api.GetAccount200JSONResponse{
		ReferenceId:   acc.ReferenceID,
		FirstName:     acc.Applicant.FirstName,
		LastName:      acc.Applicant.LastName,
		TaxId:         acc.Applicant.TaxID,
		DateOfBirth:   openapi_types.Date{Time: acc.Applicant.DateOfBirth},
		RiskProfile:   acc.RiskProfile,
		ApprovedLimit: acc.ApprovedLimit,
		OpenedAt:      acc.OpenedAt,
	}, nil
}

func trimRequest(req api.OpenAccountRequest) api.OpenAccountRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.TaxId = strings.TrimSpace(req.TaxId)
	req.DateOfBirth = strings.TrimSpace(req.DateOfBirth)
	return req
}

// requestError handles bodies the generated handler could not decode.
func (s *Server) requestError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Debug().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("bad request")
	writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "malformed body"})
}

func (s *Server) responseError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("response failed")
	writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
