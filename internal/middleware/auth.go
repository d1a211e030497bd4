package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"

	RoleAdmin = "ADMIN"
)

// AuthMiddleware validates an HS256 bearer token and copies its user_id,
// email and role claims into the echo context.
func AuthMiddleware(secret string) echo.MiddlewareFunc {
	jwtKey := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization header missing")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token malformed")
			}

			token, err := jwt.Parse(strings.TrimSpace(tokenString), func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return jwtKey, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}
			userID, _ := claims["user_id"].(string)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no user_id")
			}

			c.Set(ContextUserID, userID)
			if email, ok := claims["email"].(string); ok {
				c.Set(ContextEmail, email)
			}
			if role, ok := claims["role"].(string); ok {
				c.Set(ContextRole, role)
			}

			return next(c)
		}
	}
}

func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value, ok := c.Get(ContextRole).(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "role not found in token")
			}
			if value != role {
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}
			return next(c)
		}
	}
}

func UserID(c echo.Context) string {
	userID, _ := c.Get(ContextUserID).(string)
	return userID
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(ContextRole).(string)
	return role == RoleAdmin
}
