package refids

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dob = time.Date(2000, time.August, 14, 0, 0, 0, 0, time.UTC)

func TestObtainID_StableForSameToken(t *testing.T) {
	m := New()
	a, err := m.ObtainID(context.Background(), "Mohamed", "tok", "Ahmed", "100AB", dob)
	require.NoError(t, err)
	b, err := m.ObtainID(context.Background(), "Mohamed", "tok", "Ahmed", "100AB", dob)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "ACC-"))
	assert.Len(t, a, len("ACC-")+36)
}

func TestObtainID_DiffersPerToken(t *testing.T) {
	m := New()
	a, err := m.ObtainID(context.Background(), "Mohamed", "tok-1", "Ahmed", "100AB", dob)
	require.NoError(t, err)
	b, err := m.ObtainID(context.Background(), "Mohamed", "tok-2", "Ahmed", "100AB", dob)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestObtainID_RequiresToken(t *testing.T) {
	_, err := New().ObtainID(context.Background(), "Mohamed", "", "Ahmed", "100AB", dob)
	assert.ErrorIs(t, err, ErrMissingCorrelationToken)
}
