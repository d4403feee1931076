package claim_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

type recordingLedger struct {
	mu      sync.Mutex
	appends []string // "user:serial"
	fail    error
	delay   time.Duration
}

func (l *recordingLedger) Append(_ context.Context, userID string, card models.CardInstance) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.appends = append(l.appends, userID+":"+card.SerialNumber)
	return nil
}

func (l *recordingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.appends)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testCard = models.CardInstance{
	Name: "Kira Ryosuke", Set: "Matsukaze Kokuo High", Rarity: models.Uncommon, SerialNumber: "MTKZ-UC-KIRY-1",
}

func newCoordinator(ledger claim.Appender, mode claim.Mode) (*claim.Coordinator, *clock) {
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := claim.NewCoordinator(ledger, mode, time.Minute)
	c.SetClock(clk.Now)
	return c, clk
}

func TestClaim_SecondClaimReportsAlreadyClaimed(t *testing.T) {
	ledger := &recordingLedger{}
	c, _ := newCoordinator(ledger, claim.ModeAnyone)
	d := c.Offer(testCard, "op")

	_, err := c.Claim(context.Background(), d.ID, "alice")
	require.NoError(t, err)
	_, err = c.Claim(context.Background(), d.ID, "alice")
	assert.ErrorIs(t, err, claim.ErrAlreadyClaimed)
	_, err = c.Claim(context.Background(), d.ID, "bob")
	assert.ErrorIs(t, err, claim.ErrAlreadyClaimed)

	assert.Equal(t, []string{"alice:MTKZ-UC-KIRY-1"}, ledger.appends)
	state, claimant := d.Status()
	assert.Equal(t, claim.Claimed, state)
	assert.Equal(t, "alice", claimant)
}

func TestClaim_ConcurrentClaimsAppendOnce(t *testing.T) {
	ledger := &recordingLedger{delay: 5 * time.Millisecond}
	c, _ := newCoordinator(ledger, claim.ModeAnyone)
	d := c.Offer(testCard, "op")

	var wins, already int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Claim(context.Background(), d.ID, string(rune('a'+i)))
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, claim.ErrAlreadyClaimed):
				atomic.AddInt32(&already, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 19, already)
	assert.Equal(t, 1, ledger.count())
}

func TestClaim_DropperModeRejectsOthers(t *testing.T) {
	ledger := &recordingLedger{}
	c, _ := newCoordinator(ledger, claim.ModeDropper)
	d := c.Offer(testCard, "op")

	_, err := c.Claim(context.Background(), d.ID, "mallory")
	assert.ErrorIs(t, err, claim.ErrUnauthorized)
	assert.Zero(t, ledger.count())

	state, _ := d.Status()
	assert.Equal(t, claim.Dropped, state, "unauthorized claim must not change state")

	_, err = c.Claim(context.Background(), d.ID, "op")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.count())
}

func TestClaim_UnknownDrop(t *testing.T) {
	c, _ := newCoordinator(&recordingLedger{}, claim.ModeAnyone)
	_, err := c.Claim(context.Background(), "nope", "alice")
	assert.ErrorIs(t, err, claim.ErrUnknownDrop)
}

func TestClaim_AfterWindowExpires(t *testing.T) {
	ledger := &recordingLedger{}
	c, clk := newCoordinator(ledger, claim.ModeAnyone)
	d := c.Offer(testCard, "op")

	clk.Advance(time.Minute)
	_, err := c.Claim(context.Background(), d.ID, "alice")
	assert.ErrorIs(t, err, claim.ErrExpired)
	assert.Zero(t, ledger.count())

	state, _ := d.Status()
	assert.Equal(t, claim.Dropped, state)

	expired := c.Sweep(clk.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, d.ID, expired[0].ID)
	state, _ = d.Status()
	assert.Equal(t, claim.Expired, state)

	_, err = c.Claim(context.Background(), d.ID, "alice")
	assert.ErrorIs(t, err, claim.ErrExpired)
	assert.Zero(t, ledger.count())
}

func TestClaim_LedgerFailureLeavesDropClaimable(t *testing.T) {
	ledger := &recordingLedger{fail: errors.New("disk full")}
	c, _ := newCoordinator(ledger, claim.ModeAnyone)
	d := c.Offer(testCard, "op")

	_, err := c.Claim(context.Background(), d.ID, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	state, _ := d.Status()
	assert.Equal(t, claim.Dropped, state)

	ledger.fail = nil
	_, err = c.Claim(context.Background(), d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.count())
}

func TestSweep_ExpiresAndForgets(t *testing.T) {
	c, clk := newCoordinator(&recordingLedger{}, claim.ModeAnyone)
	stale := c.Offer(testCard, "op")
	clk.Advance(30 * time.Second)
	fresh := c.Offer(testCard, "op")
	assert.Equal(t, 2, c.Pending())

	clk.Advance(30 * time.Second)
	expired := c.Sweep(clk.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, 1, c.Pending())

	// already expired drops are not reported again
	assert.Empty(t, c.Sweep(clk.Now()))

	_, err := c.Claim(context.Background(), stale.ID, "alice")
	assert.ErrorIs(t, err, claim.ErrExpired)

	clk.Advance(2 * time.Minute)
	expired = c.Sweep(clk.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, fresh.ID, expired[0].ID)

	_, ok := c.Get(stale.ID)
	assert.False(t, ok, "settled drop past retention must be forgotten")
}
