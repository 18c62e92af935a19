package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(AuthConfig{Secret: "test-secret", Issuer: "admissions", Audience: []string{"admissions-api"}}, nil)
}

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := newTestAuthService()
	user := &models.User{ID: "u1", Email: "head@example.com", Role: models.RoleProgramHead, FullName: "Program Head"}

	token, err := svc.IssueToken(user, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleProgramHead, claims.Role)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := newTestAuthService()
	user := &models.User{ID: "u1", Role: models.RoleRegistrar}

	expired, err := svc.IssueToken(user, -time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewAuthService(AuthConfig{Secret: "other", Issuer: "admissions", Audience: []string{"admissions-api"}}, nil).IssueToken(user, time.Hour)
	require.NoError(t, err)

	wrongAudience, err := NewAuthService(AuthConfig{Secret: "test-secret", Issuer: "admissions", Audience: []string{"portal"}}, nil).IssueToken(user, time.Hour)
	require.NoError(t, err)

	noSubject, err := svc.IssueToken(&models.User{Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "admissions"}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":        expired,
		"other secret":   otherSecret,
		"wrong audience": wrongAudience,
		"no subject":     noSubject,
		"wrong method":   hs512,
		"garbage":        "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}
