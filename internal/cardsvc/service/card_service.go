package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	log "github.com/sirupsen/logrus"
)

const (
	PageSize = 10

	NoCardsNotice   = "You have no cards!"
	EmptyPageNotice = "No cards on this page."
)

var (
	ErrUnauthorized = errors.New("service: only the operator may drop cards")
	ErrCardNotFound = errors.New("service: card not found")
)

type Issuer interface {
	Issue(ctx context.Context) (models.CardInstance, error)
}

type Ledger interface {
	CardsFor(ctx context.Context, userID string) ([]models.CardRecord, error)
}

// SerialObserver is told about every serial this process appended.
type SerialObserver interface {
	Observe(serial string)
}

type IndexedCard struct {
	Index int
	Card  models.CardRecord
}

// Page is one page of a user's collection. Indexes are 1-based positions in
// the whole collection, so they can be passed to Show.
type Page struct {
	Number  int
	Items   []IndexedCard
	Total   int
	HasNext bool
	HasPrev bool
}

// Notice returns the text shown instead of an empty page, or "".
func (p Page) Notice() string {
	switch {
	case p.Total == 0:
		return NoCardsNotice
	case len(p.Items) == 0:
		return EmptyPageNotice
	}
	return ""
}

type CardService struct {
	issuer      Issuer
	coordinator *claim.Coordinator
	ledger      Ledger
	observer    SerialObserver
	operatorID  string
	maxDrop     int
}

// NewCardService wires the drop and collection operations. observer may be nil.
func NewCardService(issuer Issuer, coordinator *claim.Coordinator, ledger Ledger, observer SerialObserver, operatorID string, maxDrop int) *CardService {
	if maxDrop < 1 {
		maxDrop = 1
	}
	return &CardService{
		issuer:      issuer,
		coordinator: coordinator,
		ledger:      ledger,
		observer:    observer,
		operatorID:  operatorID,
		maxDrop:     maxDrop,
	}
}

func (s *CardService) OperatorID() string {
	return s.operatorID
}

// Drop issues count cards and offers each as its own drop. Counts below 1
// become 1 and counts above the configured maximum are capped. Nothing is
// written to the ledger. On an issuance failure the drops already offered are
// returned with the error.
func (s *CardService) Drop(ctx context.Context, actorID string, count int) ([]*claim.Drop, error) {
	if actorID != s.operatorID {
		return nil, ErrUnauthorized
	}
	if count < 1 {
		count = 1
	}
	if count > s.maxDrop {
		count = s.maxDrop
	}

	drops := make([]*claim.Drop, 0, count)
	for i := 0; i < count; i++ {
		card, err := s.issuer.Issue(ctx)
		if err != nil {
			return drops, fmt.Errorf("issue card %d of %d: %w", i+1, count, err)
		}
		d := s.coordinator.Offer(card, actorID)
		log.Infof("drop %s offered: %s (%s)", d.ID, card.SerialNumber, card.Rarity)
		drops = append(drops, d)
	}
	return drops, nil
}

// Claim settles a drop for actorID. The error is one of the claim package's
// sentinels or a wrapped ledger failure.
func (s *CardService) Claim(ctx context.Context, dropID, actorID string) (*claim.Drop, error) {
	d, err := s.coordinator.Claim(ctx, dropID, actorID)
	if err != nil {
		return d, err
	}
	if s.observer != nil {
		s.observer.Observe(d.Card.SerialNumber)
	}
	return d, nil
}

// List returns page number page (1-based, values below 1 become 1) of the
// user's collection in acquisition order.
func (s *CardService) List(ctx context.Context, userID string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	cards, err := s.ledger.CardsFor(ctx, userID)
	if err != nil {
		return Page{}, fmt.Errorf("list cards of %s: %w", userID, err)
	}

	p := Page{Number: page, Total: len(cards), HasPrev: page > 1}
	start := (page - 1) * PageSize
	if start >= len(cards) {
		return p, nil
	}
	end := min(start+PageSize, len(cards))
	for i := start; i < end; i++ {
		p.Items = append(p.Items, IndexedCard{Index: i + 1, Card: cards[i]})
	}
	p.HasNext = end < len(cards)
	return p, nil
}

// Show returns the card at the 1-based index of the user's collection.
func (s *CardService) Show(ctx context.Context, userID string, index int) (models.CardRecord, error) {
	cards, err := s.ledger.CardsFor(ctx, userID)
	if err != nil {
		return models.CardRecord{}, fmt.Errorf("show card of %s: %w", userID, err)
	}
	if index < 1 || index > len(cards) {
		return models.CardRecord{}, fmt.Errorf("%w: index %d of %d", ErrCardNotFound, index, len(cards))
	}
	return cards[index-1], nil
}

// Expire runs one expiry sweep over pending drops.
func (s *CardService) Expire() []*claim.Drop {
	return s.coordinator.Sweep(s.coordinator.Now())
}
