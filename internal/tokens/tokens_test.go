package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	signed, claims, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.TokenID)

	parsed, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, 42, parsed.UserID)
	assert.Equal(t, claims.TokenID, parsed.TokenID)
	assert.WithinDuration(t, claims.ExpiresAt, parsed.ExpiresAt, time.Second)
}

func TestIssuer_ParseRejectsForeignSecret(t *testing.T) {
	signed, _, err := NewIssuer("secret", time.Hour).Issue(1)
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_ParseRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, _, err := issuer.Issue(1)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_ParseRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_ParseRejectsBadSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDenylist(client), mr
}

func TestDenylist_RevokeAndExpire(t *testing.T) {
	denylist, mr := newDenylist(t)
	ctx := context.Background()
	claims := Claims{UserID: 1, TokenID: "jti-1", ExpiresAt: time.Now().Add(10 * time.Minute)}

	revoked, err := denylist.IsRevoked(ctx, claims.TokenID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, denylist.Revoke(ctx, claims))
	revoked, err = denylist.IsRevoked(ctx, claims.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(11 * time.Minute)
	revoked, err = denylist.IsRevoked(ctx, claims.TokenID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDenylist_RevokeExpiredIsNoop(t *testing.T) {
	denylist, mr := newDenylist(t)

	err := denylist.Revoke(context.Background(), Claims{TokenID: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.False(t, mr.Exists(denylistPrefix+"old"))
}

func TestDenylist_Verify(t *testing.T) {
	denylist, _ := newDenylist(t)
	ctx := context.Background()
	claims := Claims{UserID: 1, TokenID: "jti-2", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, denylist.Verify(ctx, claims))
	require.NoError(t, denylist.Revoke(ctx, claims))
	assert.ErrorIs(t, denylist.Verify(ctx, claims), ErrRevoked)
}

func TestDenylist_VerifySurfacesRedisErrors(t *testing.T) {
	denylist, mr := newDenylist(t)
	mr.Close()

	err := denylist.Verify(context.Background(), Claims{TokenID: "jti-3", ExpiresAt: time.Now().Add(time.Hour)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRevoked)
}
