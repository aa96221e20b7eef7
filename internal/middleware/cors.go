package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS admits browser calls from the configured frontend only.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		MaxAge:           600,
		AllowCredentials: true,
	})

	return handler.Handler
}
