package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/shared/errors"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateToken("usr_1", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.False(t, claims.Admin)
	assert.Equal(t, "usr_1", claims.Subject)
}

func TestJWTService_AdminFlag(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateToken("usr_admin", true)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.Admin)
}

func TestJWTService_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a").GenerateToken("usr_1", false)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").ValidateToken(token)
	assert.True(t, errors.IsAuthExpiredError(err))
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	_, err := svc.ValidateToken("not.a.token")
	assert.True(t, errors.IsAuthExpiredError(err))

	_, err = svc.ValidateToken("")
	assert.True(t, errors.IsAuthExpiredError(err))
}

func TestJWTService_UnsignedAlgorithmRejected(t *testing.T) {
	svc := NewJWTService("test-secret")

	// alg=none with an empty signature; the parser must refuse non-HMAC
	// methods before looking at claims.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." +
		"eyJ1aWQiOiJ1c3JfMSIsInN1YiI6InVzcl8xIn0."
	_, err := svc.ValidateToken(unsigned)
	assert.True(t, errors.IsAuthExpiredError(err))
}
