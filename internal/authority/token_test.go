package authority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, "pawhub-test")

	tok, err := m.Generate("u1", "rex")
	require.NoError(t, err)

	claims, err := m.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "rex", claims.Username)
	assert.Equal(t, "pawhub-test", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenManager("secret-a", time.Hour, "pawhub-test").Generate("u1", "rex")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour, "pawhub-test").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", time.Nanosecond, "pawhub-test")
	// Zero and negative durations fall back to the default, so use the
	// smallest positive one and let it lapse.
	tok, err := m.Generate("u1", "rex")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = m.Validate(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, "pawhub-test")
	_, err := m.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
