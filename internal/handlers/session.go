package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"

	"github.com/reseau-app/reseau/internal/model"
)

const (
	sessionCookieName = "session"
	sessionTTL        = 7 * 24 * time.Hour
	userContextKey    = "user"
)

type UserFetcher interface {
	Fetch(ctx context.Context, id model.UserID) (*model.User, error)
}

func sessionCookie(user *model.User, key []byte) (*http.Cookie, error) {
	now := time.Now()
	claims := &jwt.StandardClaims{
		Subject:   string(user.ID),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(sessionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func clearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
}

func parseSession(value string, key []byte) (model.UserID, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return model.UserID(claims.Subject), nil
}

// WithUser resolves the session cookie into the current user, when present.
// It never rejects: routes that require a login stack RequireUser on top.
func WithUser(users UserFetcher, key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessionCookieName)
			if err != nil {
				return next(c)
			}
			userID, err := parseSession(cookie.Value, key)
			if err != nil {
				return next(c)
			}
			user, err := users.Fetch(c.Request().Context(), userID)
			if err != nil {
				return next(c)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}
