package comm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

const (
	CardServiceTopic = "card.service"
	CardEventsTopic  = "card.events"
)

// request types on card.service; replies carry the type with a "-resp" suffix
const (
	TypeDrop  = "drop"
	TypeClaim = "claim"
	TypeList  = "list"
	TypeShow  = "show"
	TypeError = "error"
)

// event types on card.events
const (
	EventDropped = "card-dropped"
	EventClaimed = "card-claimed"
	EventExpired = "card-expired"
)

// error codes carried by ErrorData
const (
	CodeUnauthorized   = "unauthorized"
	CodeAlreadyClaimed = "already-claimed"
	CodeExpired        = "expired"
	CodeUnknownDrop    = "unknown-drop"
	CodeNotFound       = "not-found"
	CodeBadRequest     = "bad-request"
	CodeInternal       = "internal"
)

func ResponseType(requestType string) string {
	return requestType + "-resp"
}

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "drop", "card-claimed"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// NewMessage marshals data into a message of the given type.
func NewMessage(msgType string, data any) (*WSMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", msgType, err)
	}
	return &WSMessage{Type: msgType, Data: raw}, nil
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorData) Error() string {
	return e.Code + ": " + e.Message
}

type DropRequest struct {
	ActorID string `json:"actor_id"`
	Count   int    `json:"count"`
}

type DropData struct {
	ID        string            `json:"id"`
	Card      models.CardRecord `json:"card"`
	DropperID string            `json:"dropper_id"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	State     string            `json:"state"`
	ClaimedBy string            `json:"claimed_by,omitempty"`
}

type DropResponse struct {
	Drops []DropData `json:"drops"`
}

type ClaimRequest struct {
	DropID  string `json:"drop_id"`
	ActorID string `json:"actor_id"`
}

type ClaimResult struct {
	Drop DropData `json:"drop"`
}

type ListRequest struct {
	UserID string `json:"user_id"`
	Page   int    `json:"page"`
}

type IndexedCard struct {
	Index int               `json:"index"`
	Card  models.CardRecord `json:"card"`
}

type ListData struct {
	Page    int           `json:"page"`
	Items   []IndexedCard `json:"items"`
	Total   int           `json:"total"`
	HasNext bool          `json:"has_next"`
	HasPrev bool          `json:"has_prev"`
	Notice  string        `json:"notice,omitempty"` // set instead of items on an empty page
}

type ShowRequest struct {
	UserID string `json:"user_id"`
	Index  int    `json:"index"`
}

type ShowData struct {
	Index int               `json:"index"`
	Card  models.CardRecord `json:"card"`
}
