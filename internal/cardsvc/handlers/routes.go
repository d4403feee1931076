package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/users/{userID}/cards", h.ListCardsHandler)
			r.Get("/users/{userID}/cards/{index}", h.ShowCardHandler)
		})
	})
}

// InitAuth sets the HS256 key that protects the collection routes.
func (h *Handler) InitAuth(jwtKey string, debug bool) {
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	if !debug {
		return
	}

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()
	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": "cardsvc",
		"exp":        expirationTime,
	})

	// For debugging only
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
