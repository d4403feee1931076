package routes

import (
	"github.com/avvvet/cardbot-services/internal/socketsvc/handlers"
	"github.com/avvvet/cardbot-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func SetRoutes(r chi.Router, ws *ws.Ws, tokenAuth *jwtauth.JWTAuth, port string) {
	h := handlers.NewHandler(ws, port)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)
		})
	})
}

// NewAuth builds the HS256 verifier for the secure routes.
func NewAuth(jwtKey string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(jwtKey), nil)
}
