// Package issuer turns a weighted-random catalog template into a serialized
// card instance.
package issuer

import (
	"context"
	"fmt"
	"sync"

	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/avvvet/cardbot-services/internal/cardsvc/random"
)

// StatSpread bounds the random offset applied to each base stat.
const StatSpread = 10

type SerialAllocator interface {
	Next(ctx context.Context, character string, rarity models.Rarity, set string) (string, error)
}

type Issuer struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	serials SerialAllocator
	src     random.Source
}

func New(cat *catalog.Catalog, serials SerialAllocator, src random.Source) *Issuer {
	return &Issuer{
		catalog: cat,
		serials: serials,
		src:     src,
	}
}

// Issue draws a template and builds a card from it. It does not touch the
// collection ledger; the serial it consumes is never handed out again even
// if the card is never claimed.
func (i *Issuer) Issue(ctx context.Context) (models.CardInstance, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	t := i.catalog.Random(i.src)

	sn, err := i.serials.Next(ctx, t.Name, t.Rarity, t.Set)
	if err != nil {
		return models.CardInstance{}, fmt.Errorf("issue %s/%s/%s: %w", t.Name, t.Rarity, t.Set, err)
	}

	return models.CardInstance{
		Name:         t.Name,
		Variant:      t.Variant,
		Set:          t.Set,
		Rarity:       t.Rarity,
		Stats:        RollStats(t.BaseStats, i.src),
		SerialNumber: sn,
	}, nil
}

// RollStats adds an independent uniform offset in [-StatSpread, +StatSpread]
// to every base stat. Results are not clamped.
func RollStats(base models.Stats, src random.Source) models.Stats {
	return base.Map(func(v int) int {
		return v + random.IntRange(src, -StatSpread, StatSpread)
	})
}
