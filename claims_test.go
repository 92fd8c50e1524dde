package aegisx_test

import (
	"testing"
	"time"

	aegisx "github.com/aegisx/go-client"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTokenExtractsUserProjection(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	token := mintUserToken(t, expires)

	claims, err := aegisx.DecodeToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Test", claims.FirstName)
	assert.Equal(t, "User", claims.LastName)
	assert.Equal(t, aegisx.RoleAdmin, claims.Role)
	assert.Equal(t, expires.Unix(), claims.ExpiresAt.Unix())
}

func TestDecodeTokenUIDOverridesSubject(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"sub": "legacy-subject",
		"uid": "uid-wins",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	claims, err := aegisx.DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-wins", claims.Subject)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := aegisx.DecodeToken("definitely-not-a-jwt")
	require.Error(t, err)
	assert.True(t, aegisx.IsMalformedError(err))
}

func TestDecodeTokenIgnoresSignature(t *testing.T) {
	// Same payload, forged signature segment: decoding must not care.
	token := mintUserToken(t, time.Now().Add(time.Hour))
	forged := token[:len(token)-len("x")] + "x"

	_, err := aegisx.DecodeToken(forged)
	assert.NoError(t, err)
}

func TestTokenClaimsExpiredFailsClosed(t *testing.T) {
	now := time.Now()

	var none *aegisx.TokenClaims
	assert.True(t, none.Expired(now), "nil claims count as expired")

	noExpiry := &aegisx.TokenClaims{Subject: "user-1"}
	assert.True(t, noExpiry.Expired(now), "missing expiry counts as expired")

	past := &aegisx.TokenClaims{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, past.Expired(now))

	future := &aegisx.TokenClaims{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, future.Expired(now))
}

func TestTokenClaimsUserRequiresAnchor(t *testing.T) {
	empty := &aegisx.TokenClaims{}
	assert.Nil(t, empty.User())

	bySubject := &aegisx.TokenClaims{Subject: "user-1"}
	require.NotNil(t, bySubject.User())
	assert.Equal(t, "user-1", bySubject.User().ID)

	byEmail := &aegisx.TokenClaims{Email: "user@example.com"}
	require.NotNil(t, byEmail.User())
	assert.Equal(t, "user@example.com", byEmail.User().Email)
}

func TestIsTokenExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, aegisx.IsTokenExpired(mintUserToken(t, now.Add(time.Hour)), now))
	assert.True(t, aegisx.IsTokenExpired(mintUserToken(t, now.Add(-time.Hour)), now))
	assert.True(t, aegisx.IsTokenExpired("garbage", now), "undecodable tokens count as expired")
}

func TestDevelopmentUserIsDeterministic(t *testing.T) {
	first := aegisx.DevelopmentUser()
	second := aegisx.DevelopmentUser()

	assert.Equal(t, aegisx.DevIdentityEmail, first.Email)
	assert.Equal(t, aegisx.RoleAdmin, first.Role)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID, "id derives from the email, stable across calls")
}
