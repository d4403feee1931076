package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avvvet/cardbot-services/internal/cardsvc/broker"
	"github.com/avvvet/cardbot-services/internal/cardsvc/service"
	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	cardService *service.CardService
	port        string
}

func NewHandler(cardService *service.CardService, port string) *Handler {
	return &Handler{cardService: cardService, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "card service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

// ListCardsHandler serves GET /v1/users/{userID}/cards?page=N.
func (h *Handler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.CreateResponse(w, Response{Message: "invalid page", Code: http.StatusBadRequest, Error: comm.CodeBadRequest})
			return
		}
		page = n
	}

	p, err := h.cardService.List(r.Context(), userID, page)
	if err != nil {
		log.Errorf("Error [CardService.List] %s", err)
		h.CreateResponse(w, Response{Message: "unable to list cards", Code: http.StatusInternalServerError, Error: comm.CodeInternal})
		return
	}

	data := broker.ListData(p)
	msg := "ok"
	if data.Notice != "" {
		msg = data.Notice
	}
	h.CreateResponse(w, Response{Message: msg, Code: http.StatusOK, Data: data})
}

// ShowCardHandler serves GET /v1/users/{userID}/cards/{index}.
func (h *Handler) ShowCardHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid index", Code: http.StatusBadRequest, Error: comm.CodeBadRequest})
		return
	}

	card, err := h.cardService.Show(r.Context(), userID, index)
	switch {
	case errors.Is(err, service.ErrCardNotFound):
		h.CreateResponse(w, Response{Message: "card not found", Code: http.StatusNotFound, Error: comm.CodeNotFound})
		return
	case err != nil:
		log.Errorf("Error [CardService.Show] %s", err)
		h.CreateResponse(w, Response{Message: "unable to show card", Code: http.StatusInternalServerError, Error: comm.CodeInternal})
		return
	}

	h.CreateResponse(w, Response{
		Message: card.String(),
		Code:    http.StatusOK,
		Data:    comm.ShowData{Index: index, Card: card},
	})
}
