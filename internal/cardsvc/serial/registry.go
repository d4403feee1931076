// Package serial allocates card serial numbers of the form
// {setCode}-{rarityCode}-{charCode}-{count}.
package serial

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

// Ledger reports every serial already persisted, across all users.
type Ledger interface {
	Serials(ctx context.Context) (map[string]struct{}, error)
}

// CounterStore saves counters across restarts, keyed by Key.String.
type CounterStore interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, counts map[string]int) error
}

// Key identifies a counter. It uses full names, so two characters whose codes
// collide still count independently; the rendered-string check in Next keeps
// their serials apart.
type Key struct {
	Character string
	Rarity    models.Rarity
	Set       string
}

func (k Key) String() string {
	return k.Character + "|" + string(k.Rarity) + "|" + k.Set
}

func parseKey(s string) (Key, bool) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{Character: parts[0], Rarity: models.Rarity(parts[1]), Set: parts[2]}, true
}

// Registry is the single writer for serial numbers. The persisted ledger is
// the source of truth for which serials are taken; the counters are a cache.
type Registry struct {
	mu     sync.Mutex
	codes  *catalog.Codes
	ledger Ledger

	counts map[Key]int
	// handed out by this process and not yet seen in the ledger. Serials of
	// drops that are never claimed stay here for the life of the process.
	issued map[string]struct{}

	cacheSnapshot bool
	persisted     map[string]struct{}
	stale         bool

	counters CounterStore
}

type Option func(*Registry)

// WithSnapshotCache keeps the persisted-serial set between calls instead of
// rescanning the ledger on every Next. Callers must call Invalidate when the
// ledger is written by anyone else.
func WithSnapshotCache() Option {
	return func(r *Registry) { r.cacheSnapshot = true }
}

// WithCounterStore restores counters from cs at start and saves them on every
// Next, so serials of drops that were never claimed are not reissued after a
// restart.
func WithCounterStore(cs CounterStore) Option {
	return func(r *Registry) { r.counters = cs }
}

// NewRegistry builds a registry and reconciles it with the ledger.
func NewRegistry(ctx context.Context, codes *catalog.Codes, ledger Ledger, opts ...Option) (*Registry, error) {
	r := &Registry{
		codes:  codes,
		ledger: ledger,
		counts: make(map[Key]int),
		issued: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.counters != nil {
		saved, err := r.counters.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("serial: load counters: %w", err)
		}
		for s, n := range saved {
			if key, ok := parseKey(s); ok {
				r.counts[key] = n
			}
		}
	}
	if err := r.Reconcile(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func Format(setCode, rarityCode, charCode string, count int) string {
	return fmt.Sprintf("%s-%s-%s-%d", setCode, rarityCode, charCode, count)
}

// Next returns a serial that is not in the ledger and was never returned
// before by this registry.
func (r *Registry) Next(ctx context.Context, character string, rarity models.Rarity, set string) (string, error) {
	charCode := r.codes.CharacterCode(catalog.Name(character))
	rarityCode := r.codes.RarityCode(catalog.Name(string(rarity)))
	setCode := r.codes.SetCode(catalog.Name(set))

	r.mu.Lock()
	defer r.mu.Unlock()

	persisted, err := r.persistedLocked(ctx)
	if err != nil {
		return "", err
	}

	key := Key{Character: character, Rarity: rarity, Set: set}
	count := r.counts[key] + 1
	candidate := Format(setCode, rarityCode, charCode, count)
	for r.takenLocked(persisted, candidate) {
		count++
		candidate = Format(setCode, rarityCode, charCode, count)
	}

	prev, had := r.counts[key]
	r.counts[key] = count
	if err := r.saveLocked(ctx); err != nil {
		if had {
			r.counts[key] = prev
		} else {
			delete(r.counts, key)
		}
		return "", err
	}
	r.issued[candidate] = struct{}{}
	return candidate, nil
}

func (r *Registry) saveLocked(ctx context.Context) error {
	if r.counters == nil {
		return nil
	}
	out := make(map[string]int, len(r.counts))
	for k, n := range r.counts {
		out[k.String()] = n
	}
	if err := r.counters.Save(ctx, out); err != nil {
		return fmt.Errorf("serial: save counters: %w", err)
	}
	return nil
}

// Invalidate marks the cached ledger snapshot stale. The next call to Next
// rescans the ledger.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// Observe records a serial this process has just persisted, so the cached
// snapshot stays current without a rescan. The ledger now guards it, so it
// is no longer tracked as outstanding.
func (r *Registry) Observe(serial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persisted != nil {
		r.persisted[serial] = struct{}{}
		delete(r.issued, serial)
	}
}

// Outstanding returns how many serials were handed out but are not yet known
// to be in the ledger.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}

// Reconcile reloads the persisted serial set immediately.
func (r *Registry) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

func (r *Registry) persistedLocked(ctx context.Context) (map[string]struct{}, error) {
	if !r.cacheSnapshot || r.stale || r.persisted == nil {
		if err := r.reloadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return r.persisted, nil
}

func (r *Registry) reloadLocked(ctx context.Context) error {
	serials, err := r.ledger.Serials(ctx)
	if err != nil {
		return fmt.Errorf("serial: load ledger serials: %w", err)
	}
	if serials == nil {
		serials = make(map[string]struct{})
	}
	r.persisted = serials
	r.stale = false
	for sn := range r.issued {
		if _, ok := serials[sn]; ok {
			delete(r.issued, sn)
		}
	}
	return nil
}

func (r *Registry) takenLocked(persisted map[string]struct{}, candidate string) bool {
	if _, ok := persisted[candidate]; ok {
		return true
	}
	_, ok := r.issued[candidate]
	return ok
}
