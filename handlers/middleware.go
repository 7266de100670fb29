package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("todo-api/http")

/*
ValidateRequest wraps every route in the top-level validate_request span.
It rejects non-JSON bodies and caps body size before the handler runs;
rejected requests produce no further spans.
*/
func (h *Handler) ValidateRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "validate_request")
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)

		// artificial validation work so the span is visible in trace views
		time.Sleep(5 * time.Millisecond)

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && !isJSONContentType(r) {
			span.SetAttributes(attribute.Bool("error", true))
			span.SetStatus(codes.Error, "unsupported content type")
			sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

		next(w, r.WithContext(ctx))
	}
}

/*
RequireAuth verifies bearer JWT tokens when a secret is configured and
stores the subject claim in the request context. With no secret the
service stays open, which is the demo default.
*/
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.JWTSecret == "" {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(h.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			sendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["sub"] == nil {
			sendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user_id", claims["sub"])
		next(w, r.WithContext(ctx))
	}
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}
