// Package claim tracks dropped cards until they are claimed or expire.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownDrop    = errors.New("claim: unknown drop")
	ErrAlreadyClaimed = errors.New("claim: drop already claimed")
	ErrExpired        = errors.New("claim: drop expired")
	ErrUnauthorized   = errors.New("claim: not allowed to claim this drop")
)

type State int

const (
	Dropped State = iota
	Claimed
	Expired
)

func (s State) String() string {
	switch s {
	case Dropped:
		return "dropped"
	case Claimed:
		return "claimed"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode decides who may claim a drop.
type Mode string

const (
	ModeDropper Mode = "dropper" // only the user who triggered the drop
	ModeAnyone  Mode = "anyone"  // anyone who can see the drop
)

func (m Mode) Valid() bool {
	return m == ModeDropper || m == ModeAnyone
}

// Appender persists a claimed card.
type Appender interface {
	Append(ctx context.Context, userID string, card models.CardInstance) error
}

// Drop is one issued card waiting for a claim.
type Drop struct {
	ID        string
	Card      models.CardInstance
	DropperID string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu       sync.Mutex
	state    State
	claimant string
}

// Status reports the drop's state and, once claimed, who claimed it.
func (d *Drop) Status() (State, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.claimant
}

type Coordinator struct {
	drops  sync.Map // drop id -> *Drop
	ledger Appender
	mode   Mode
	window time.Duration
	now    func() time.Time
}

func NewCoordinator(ledger Appender, mode Mode, window time.Duration) *Coordinator {
	return &Coordinator{
		ledger: ledger,
		mode:   mode,
		window: window,
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Coordinator) Now() time.Time {
	return c.now()
}

func (c *Coordinator) Mode() Mode {
	return c.mode
}

// Offer registers a card as claimable for the configured window.
func (c *Coordinator) Offer(card models.CardInstance, dropperID string) *Drop {
	now := c.now()
	d := &Drop{
		ID:        uuid.NewString(),
		Card:      card,
		DropperID: dropperID,
		CreatedAt: now,
		ExpiresAt: now.Add(c.window),
	}
	c.drops.Store(d.ID, d)
	return d
}

func (c *Coordinator) Get(dropID string) (*Drop, bool) {
	v, ok := c.drops.Load(dropID)
	if !ok {
		return nil, false
	}
	return v.(*Drop), true
}

// Claim moves a drop from Dropped to Claimed and appends the card to the
// actor's collection. The state check, the append and the transition run
// under the drop's lock, so a drop is appended at most once no matter how
// many claims race. A failed append leaves the drop claimable.
func (c *Coordinator) Claim(ctx context.Context, dropID, actorID string) (*Drop, error) {
	d, ok := c.Get(dropID)
	if !ok {
		return nil, ErrUnknownDrop
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if c.mode == ModeDropper && actorID != d.DropperID {
		return d, ErrUnauthorized
	}

	switch d.state {
	case Claimed:
		return d, ErrAlreadyClaimed
	case Expired:
		return d, ErrExpired
	}

	// the state stays Dropped; Sweep owns the transition so the expiry is reported
	if !c.now().Before(d.ExpiresAt) {
		return d, ErrExpired
	}

	if err := c.ledger.Append(ctx, actorID, d.Card); err != nil {
		return d, fmt.Errorf("claim %s: %w", d.Card.SerialNumber, err)
	}

	d.state = Claimed
	d.claimant = actorID
	log.Infof("drop %s (%s) claimed by %s", d.ID, d.Card.SerialNumber, actorID)
	return d, nil
}

// Sweep expires drops whose window has passed and returns them. Settled drops
// are forgotten once they are older than twice the claim window.
func (c *Coordinator) Sweep(now time.Time) []*Drop {
	var expired []*Drop
	c.drops.Range(func(key, value any) bool {
		d := value.(*Drop)

		d.mu.Lock()
		if d.state == Dropped && !now.Before(d.ExpiresAt) {
			d.state = Expired
			expired = append(expired, d)
		}
		forget := d.state != Dropped && now.Sub(d.ExpiresAt) >= c.window
		d.mu.Unlock()

		if forget {
			c.drops.Delete(key)
		}
		return true
	})
	return expired
}

// Pending returns how many drops are still claimable.
func (c *Coordinator) Pending() int {
	n := 0
	c.drops.Range(func(_, value any) bool {
		if state, _ := value.(*Drop).Status(); state == Dropped {
			n++
		}
		return true
	})
	return n
}
