package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: "access-secret", AccessTokenExpiry: time.Minute, Issuer: "timetable"})
}

func TestAuthServiceSessionRoundTrip(t *testing.T) {
	svc := newTestAuthService()

	token, expiresAt, err := svc.IssueToken("u-teacher", models.RoleTeacher, "t1", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	session, err := svc.Session(token)
	require.NoError(t, err)
	assert.Equal(t, &models.Session{UserID: "u-teacher", Role: models.RoleTeacher, TeacherID: "t1", Token: token}, session)
	assert.Equal(t, "Bearer "+token, session.Bearer())
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := newTestAuthService()

	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other-secret", Issuer: "timetable"})
	forged, _, err := other.IssueToken("u-admin", models.RoleAdmin, "", "")
	require.NoError(t, err)

	foreign := NewAuthService(nil, AuthConfig{AccessTokenSecret: "access-secret", Issuer: "elsewhere"})
	wrongIssuer, _, err := foreign.IssueToken("u-admin", models.RoleAdmin, "", "")
	require.NoError(t, err)

	unknownRole, _, err := svc.IssueToken("u-guest", "guest", "", "")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-jwt",
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"unknown role": unknownRole,
		"unsigned":     unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Session(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceFallsBackToSubject(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{
		Role: models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-student",
			Issuer:    "timetable",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		GroupID: "g2",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	session, err := svc.Session(token)
	require.NoError(t, err)
	assert.Equal(t, "u-student", session.UserID)
	assert.Equal(t, models.ID("g2"), session.GroupID)
}

func TestAuthServiceExpiredToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "access-secret"})
	claims := &models.JWTClaims{
		UserID: "u-admin",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
