package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("jwt-test-secret")

func TestGenerateVerifyRoundtrip(t *testing.T) {
	opts := DefaultOptions(testSecret)

	token, exp, err := Generate(opts, "alice")
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	sub, err := Verify(opts, token)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("other")), "alice")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(testSecret), token)
	require.Error(t, err)
	require.False(t, IsExpired(err))
}

func TestVerifyDetectsExpired(t *testing.T) {
	// Generate 不签过期票，直接手搓一张
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": "alice",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(testSecret), token)
	require.Error(t, err)
	require.True(t, IsExpired(err))
}

func TestVerifyRequiresSub(t *testing.T) {
	now := time.Now()
	claims := jwtlib.MapClaims{"exp": now.Add(time.Hour).Unix()}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(testSecret), token)
	require.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: testSecret, Alg: "RS256"}
	_, _, err := Generate(opts, "alice")
	require.Error(t, err)
	_, err = Verify(opts, "whatever")
	require.Error(t, err)
}
