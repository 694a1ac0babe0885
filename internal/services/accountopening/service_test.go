package accountopening

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pension/internal/domain"
)

const (
	firstName = "Mohamed"
	lastName  = "Ahmed"
	taxID     = "100AB"
	validID   = "VALID_ID"
)

var (
	dob            = time.Date(2000, time.August, 14, 0, 0, 0, 0, time.UTC)
	acceptedChecks = &domain.BackgroundCheckResults{RiskProfile: "Accepted Risk", Limit: 50000}
)

type MockBackgroundCheckService struct {
	mock.Mock
}

func (m *MockBackgroundCheckService) Confirm(ctx context.Context, firstName, lastName, taxID string, dateOfBirth time.Time) (*domain.BackgroundCheckResults, error) {
	args := m.Called(ctx, firstName, lastName, taxID, dateOfBirth)
	res, _ := args.Get(0).(*domain.BackgroundCheckResults)
	return res, args.Error(1)
}

type MockReferenceIdsManager struct {
	mock.Mock
}

func (m *MockReferenceIdsManager) ObtainID(ctx context.Context, firstName, correlationToken, lastName, taxID string, dateOfBirth time.Time) (string, error) {
	args := m.Called(ctx, firstName, correlationToken, lastName, taxID, dateOfBirth)
	return args.String(0), args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Save(ctx context.Context, referenceID, firstName, lastName, taxID string, dateOfBirth time.Time, results domain.BackgroundCheckResults) (bool, error) {
	args := m.Called(ctx, referenceID, firstName, lastName, taxID, dateOfBirth, results)
	return args.Bool(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Notify(ctx context.Context, referenceID string) error {
	args := m.Called(ctx, referenceID)
	return args.Error(0)
}

type fixture struct {
	checks    *MockBackgroundCheckService
	ids       *MockReferenceIdsManager
	accounts  *MockAccountRepository
	publisher *MockEventPublisher
	svc       *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		checks:    &MockBackgroundCheckService{},
		ids:       &MockReferenceIdsManager{},
		accounts:  &MockAccountRepository{},
		publisher: &MockEventPublisher{},
	}
	f.svc = New(f.checks, f.ids, f.accounts, f.publisher, opts...)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.checks.AssertExpectations(t)
	f.ids.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func (f *fixture) assertNothingDownstream(t *testing.T) {
	f.ids.AssertNotCalled(t, "ObtainID", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func (f *fixture) acceptApplicant() {
	f.checks.On("Confirm", mock.Anything, firstName, lastName, taxID, dob).Return(acceptedChecks, nil)
}

func (f *fixture) issueID(id string) {
	f.ids.On("ObtainID", mock.Anything, firstName, mock.AnythingOfType("string"), lastName, taxID, dob).Return(id, nil)
}

func TestOpenAccount_Opens(t *testing.T) {
	f := newFixture()
	f.acceptApplicant()
	f.issueID(validID)
	f.accounts.On("Save", mock.Anything, validID, firstName, lastName, taxID, dob, *acceptedChecks).Return(true, nil)
	f.publisher.On("Notify", mock.Anything, validID).Return(nil)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	require.NoError(t, err)
	assert.Equal(t, domain.Opened, status)
	f.assertExpectations(t)
}

func TestOpenAccount_OpensEvenWhenRecordAlreadyExisted(t *testing.T) {
	f := newFixture()
	f.acceptApplicant()
	f.issueID(validID)
	f.accounts.On("Save", mock.Anything, validID, firstName, lastName, taxID, dob, *acceptedChecks).Return(false, nil)
	f.publisher.On("Notify", mock.Anything, validID).Return(nil)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	require.NoError(t, err)
	assert.Equal(t, domain.Opened, status)
	f.assertExpectations(t)
}

func TestOpenAccount_PassesFreshCorrelationToken(t *testing.T) {
	tokens := []string{"tok-1", "tok-2"}
	next := 0
	f := newFixture(WithTokenSource(func() string {
		tok := tokens[next]
		next++
		return tok
	}))
	f.acceptApplicant()
	f.ids.On("ObtainID", mock.Anything, firstName, "tok-1", lastName, taxID, dob).Return("ID-1", nil).Once()
	f.ids.On("ObtainID", mock.Anything, firstName, "tok-2", lastName, taxID, dob).Return("ID-2", nil).Once()
	f.accounts.On("Save", mock.Anything, mock.Anything, firstName, lastName, taxID, dob, *acceptedChecks).Return(true, nil)
	f.publisher.On("Notify", mock.Anything, "ID-1").Return(nil).Once()
	f.publisher.On("Notify", mock.Anything, "ID-2").Return(nil).Once()

	for i := 0; i < 2; i++ {
		status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)
		require.NoError(t, err)
		assert.Equal(t, domain.Opened, status)
	}
	f.assertExpectations(t)
}

func TestOpenAccount_DefaultTokenIsNonEmpty(t *testing.T) {
	f := newFixture()
	f.acceptApplicant()
	f.ids.On("ObtainID", mock.Anything, firstName, mock.MatchedBy(func(tok string) bool { return tok != "" }), lastName, taxID, dob).Return(validID, nil)
	f.accounts.On("Save", mock.Anything, validID, firstName, lastName, taxID, dob, *acceptedChecks).Return(true, nil)
	f.publisher.On("Notify", mock.Anything, validID).Return(nil)

	_, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestOpenAccount_DeclinesUnacceptableRiskProfile(t *testing.T) {
	f := newFixture()
	f.checks.On("Confirm", mock.Anything, firstName, lastName, taxID, dob).
		Return(&domain.BackgroundCheckResults{RiskProfile: domain.UnacceptableRiskProfile, Limit: 0}, nil)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	require.NoError(t, err)
	assert.Equal(t, domain.Declined, status)
	f.assertNothingDownstream(t)
}

func TestOpenAccount_DeclinesAbsentBackgroundCheck(t *testing.T) {
	f := newFixture()
	f.checks.On("Confirm", mock.Anything, firstName, lastName, taxID, dob).Return(nil, nil)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	require.NoError(t, err)
	assert.Equal(t, domain.Declined, status)
	f.assertNothingDownstream(t)
}

func TestOpenAccount_BackgroundCheckFailurePropagates(t *testing.T) {
	f := newFixture()
	f.checks.On("Confirm", mock.Anything, firstName, lastName, taxID, dob).Return(nil, io.ErrUnexpectedEOF)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	assert.Same(t, io.ErrUnexpectedEOF, err)
	assert.Empty(t, status)
	f.assertNothingDownstream(t)
}

func TestOpenAccount_ReferenceIdFailurePropagates(t *testing.T) {
	boom := errors.New("id service down")
	f := newFixture()
	f.acceptApplicant()
	f.ids.On("ObtainID", mock.Anything, firstName, mock.Anything, lastName, taxID, dob).Return("", boom)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	assert.Same(t, boom, err)
	assert.Empty(t, status)
	f.accounts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestOpenAccount_RepositoryFailurePropagates(t *testing.T) {
	boom := errors.New("insert failed")
	f := newFixture()
	f.acceptApplicant()
	f.issueID("validId")
	f.accounts.On("Save", mock.Anything, "validId", firstName, lastName, taxID, dob, *acceptedChecks).Return(false, boom)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	assert.Same(t, boom, err)
	assert.Empty(t, status)
	f.publisher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestOpenAccount_PublisherFailurePropagatesAfterSave(t *testing.T) {
	boom := errors.New("broker unreachable")
	f := newFixture()
	f.acceptApplicant()
	f.issueID("validId")
	f.accounts.On("Save", mock.Anything, "validId", firstName, lastName, taxID, dob, *acceptedChecks).Return(true, nil)
	f.publisher.On("Notify", mock.Anything, "validId").Return(boom)

	status, err := f.svc.OpenAccount(context.Background(), firstName, lastName, taxID, dob)

	assert.Same(t, boom, err)
	assert.Empty(t, status)
	f.accounts.AssertNumberOfCalls(t, "Save", 1)
}
