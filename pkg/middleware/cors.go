package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS builds the dashboard CORS policy for the configured origins.
// Credentials are allowed because the dashboard sends bearer tokens;
// preflight results are cached for five minutes.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
