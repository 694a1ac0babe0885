// Package backgroundcheck talks to the external background-check provider.
package backgroundcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pension/internal/domain"
)

const dateLayout = "2006-01-02"

// Client is a client for the provider's checks API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "background_check").Logger(),
	}
}

type checkRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	TaxID       string `json:"tax_id"`
	DateOfBirth string `json:"date_of_birth"`
}

type checkResponse struct {
	RiskProfile string `json:"risk_profile"`
	Limit       int64  `json:"limit"`
}

// StatusError is returned for any response the client does not understand.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("background check provider error: status %d, body: %s", e.StatusCode, e.Body)
}

// Confirm runs a check. A 204 or 404 from the provider means no result.
func (c *Client) Confirm(ctx context.Context, firstName, lastName, taxID string, dateOfBirth time.Time) (*domain.BackgroundCheckResults, error) {
	body, err := json.Marshal(checkRequest{
		FirstName:   firstName,
		LastName:    lastName,
		TaxID:       taxID,
		DateOfBirth: dateOfBirth.Format(dateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotFound:
		c.log.Debug().Int("status", resp.StatusCode).Msg("no background check result")
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.Warn().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("provider returned non-success status")
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out checkResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return &domain.BackgroundCheckResults{RiskProfile: out.RiskProfile, Limit: out.Limit}, nil
}
