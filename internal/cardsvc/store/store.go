// Package store persists user card collections.
package store

import (
	"errors"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

var (
	ErrCorruptLedger   = errors.New("store: ledger file is not valid JSON")
	ErrDuplicateSerial = errors.New("store: serial number already owned")
)

// Collections maps a user id to that user's cards in acquisition order.
type Collections map[string][]models.CardRecord

func (c Collections) serials() map[string]struct{} {
	out := make(map[string]struct{})
	for _, cards := range c {
		for _, card := range cards {
			out[card.SerialNumber] = struct{}{}
		}
	}
	return out
}
