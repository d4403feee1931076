package broker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	"github.com/avvvet/cardbot-services/internal/cardsvc/service"
	"github.com/avvvet/cardbot-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

var errBadRequest = errors.New("bad request")

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return nil
}

// errorData maps service errors to stable wire codes. Anything unexpected is
// logged and reported as internal without details.
func errorData(err error) *comm.ErrorData {
	code := comm.CodeInternal
	switch {
	case errors.Is(err, errBadRequest):
		code = comm.CodeBadRequest
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, claim.ErrUnauthorized):
		code = comm.CodeUnauthorized
	case errors.Is(err, claim.ErrAlreadyClaimed):
		code = comm.CodeAlreadyClaimed
	case errors.Is(err, claim.ErrExpired):
		code = comm.CodeExpired
	case errors.Is(err, claim.ErrUnknownDrop):
		code = comm.CodeUnknownDrop
	case errors.Is(err, service.ErrCardNotFound):
		code = comm.CodeNotFound
	}

	if code == comm.CodeInternal {
		log.Errorf("Error handling card request: %s", err)
		return &comm.ErrorData{Code: code, Message: "internal error"}
	}
	return &comm.ErrorData{Code: code, Message: err.Error()}
}

func errorMessage(e *comm.ErrorData) *comm.WSMessage {
	msg, err := comm.NewMessage(comm.TypeError, e)
	if err != nil {
		// ErrorData always marshals
		return &comm.WSMessage{Type: comm.TypeError}
	}
	return msg
}
