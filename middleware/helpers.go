package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/smk-league/models"
)

// JWT claim names, shared with the login handler that mints tokens.
const (
	jwtClaimUserID       = "user_id"
	jwtClaimRole         = "role"
	jwtClaimCompetitorID = "competitor_id"
)

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errors.New("user claims not found in context")
	}
	return claims, nil
}

func intClaim(claims jwt.MapClaims, name string) (int, error) {
	raw, ok := claims[name]
	if !ok {
		return 0, fmt.Errorf("missing %q claim in token", name)
	}
	// encoding/json decodes JWT numbers as float64
	value, ok := raw.(float64)
	if !ok || value != float64(int(value)) {
		return 0, fmt.Errorf("invalid %q claim: expected integer, got %T", name, raw)
	}
	return int(value), nil
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	userID, err := intClaim(claims, jwtClaimUserID)
	if err != nil {
		return 0, err
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id in %q claim: %d", jwtClaimUserID, userID)
	}
	return userID, nil
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[jwtClaimRole]
	if !ok {
		return "", fmt.Errorf("missing %q claim in token", jwtClaimRole)
	}
	roleStr, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("invalid %q claim: expected string, got %T", jwtClaimRole, raw)
	}

	role := models.UserRole(roleStr)
	switch role {
	case models.RoleAdmin, models.RolePlayer:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role value in claim: %q", roleStr)
	}
}

// GetCompetitorIDFromContext returns the competitor a player account
// controls, or nil for accounts without one (admins).
func GetCompetitorIDFromContext(ctx context.Context) (*int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := claims[jwtClaimCompetitorID]; !ok {
		return nil, nil
	}
	competitorID, err := intClaim(claims, jwtClaimCompetitorID)
	if err != nil {
		return nil, err
	}
	return &competitorID, nil
}
