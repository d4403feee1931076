// Package catalog holds the static card templates and the name-to-code tables
// used to build serial numbers and asset paths.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/avvvet/cardbot-services/internal/cardsvc/random"
)

var (
	ErrNoTemplates     = errors.New("catalog: no templates")
	ErrInvalidWeight   = errors.New("catalog: drop weight must not be negative")
	ErrZeroTotalWeight = errors.New("catalog: total drop weight is zero")
	ErrUnknownRarity   = errors.New("catalog: unknown rarity")
)

// Catalog is read-only after New and safe for concurrent use.
type Catalog struct {
	templates  []models.CardTemplate
	cumulative []int // cumulative[i] = sum of weights of templates[0..i]
	total      int
	codes      *Codes
}

// New validates the templates and precomputes the cumulative weights used by
// Random. Templates with weight 0 are kept but can never be drawn.
func New(templates []models.CardTemplate, codes *Codes) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	c := &Catalog{
		templates:  make([]models.CardTemplate, len(templates)),
		cumulative: make([]int, len(templates)),
		codes:      codes,
	}
	copy(c.templates, templates)

	for i, t := range c.templates {
		if t.DropWeight < 0 {
			return nil, fmt.Errorf("%w: %s/%s/%s has %d", ErrInvalidWeight, t.Name, t.Set, t.Rarity, t.DropWeight)
		}
		if !t.Rarity.Valid() {
			return nil, fmt.Errorf("%w: %q on %s/%s", ErrUnknownRarity, t.Rarity, t.Name, t.Set)
		}
		c.total += t.DropWeight
		c.cumulative[i] = c.total
	}
	if c.total == 0 {
		return nil, ErrZeroTotalWeight
	}

	return c, nil
}

// All returns every template in insertion order.
func (c *Catalog) All() []models.CardTemplate {
	out := make([]models.CardTemplate, len(c.templates))
	copy(out, c.templates)
	return out
}

// Random draws a template with probability DropWeight / total weight.
func (c *Catalog) Random(src random.Source) models.CardTemplate {
	roll := src.IntN(c.total)
	// first index whose cumulative weight exceeds roll; zero-weight templates
	// share their predecessor's cumulative value and are skipped
	i := sort.Search(len(c.cumulative), func(i int) bool { return c.cumulative[i] > roll })
	return c.templates[i]
}

func (c *Catalog) TotalWeight() int {
	return c.total
}

func (c *Catalog) Codes() *Codes {
	return c.codes
}
