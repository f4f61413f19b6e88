package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/smk-league/models"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func playerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		jwtClaimUserID:       float64(7),
		jwtClaimRole:         "player",
		jwtClaimCompetitorID: float64(42),
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
}

func runRequest(handler http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateStoresClaims(t *testing.T) {
	var gotUserID int
	var gotCompetitorID *int

	handler := Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotUserID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotCompetitorID, err = GetCompetitorIDFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := runRequest(handler, "Bearer "+mintToken(t, testSecret, playerClaims()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 7, gotUserID)
	require.NotNil(t, gotCompetitorID)
	assert.Equal(t, 42, *gotCompetitorID)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	handler := Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + mintToken(t, "other-secret", playerClaims())},
		{"expired", "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
			jwtClaimUserID: float64(7),
			jwtClaimRole:   "player",
			"exp":          time.Now().Add(-time.Hour).Unix(),
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequest(handler, tc.authorization)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRoleGatesByClaim(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	adminOnly := Authenticate(testSecret)(RequireRole(models.RoleAdmin)(next))

	playerToken := mintToken(t, testSecret, playerClaims())
	rec := runRequest(adminOnly, "Bearer "+playerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := mintToken(t, testSecret, jwt.MapClaims{
		jwtClaimUserID: float64(1),
		jwtClaimRole:   "admin",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	rec = runRequest(adminOnly, "Bearer "+adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Admin tokens carry no competitor claim.
	either := Authenticate(testSecret)(RequireRole(models.RoleAdmin, models.RolePlayer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		competitorID, err := GetCompetitorIDFromContext(r.Context())
		require.NoError(t, err)
		assert.Nil(t, competitorID)
		w.WriteHeader(http.StatusNoContent)
	})))
	rec = runRequest(either, "Bearer "+adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
