package catalog

import (
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

// Sentinel codes returned when a lookup has no entry. Serialization and
// rendering never fail on a gap in the code tables; an unknown character
// yields serials like "ICHI-CM-UNKN-1" instead of an error.
const (
	UnknownCharacterCode = "UNKN"
	UnknownRarityCode    = "UN"
	UnknownSetCode       = "UN"
)

type refKind int

const (
	byName refKind = iota
	byCode
)

// Ref is a lookup key that states whether it carries a display name or an
// already-short code.
type Ref struct {
	kind  refKind
	value string
}

func Name(s string) Ref { return Ref{kind: byName, value: s} }
func Code(s string) Ref { return Ref{kind: byCode, value: s} }

func (r Ref) String() string { return r.value }

// Codes translates display names into short codes.
type Codes struct {
	characters map[string]string
	rarities   map[models.Rarity]string
	sets       map[string]string

	characterCodes map[string]struct{}
	rarityCodes    map[string]struct{}
	setCodes       map[string]struct{}
}

// NewCodes builds the lookup tables. Extra character codes (template
// variants) are accepted as valid codes without a name mapping.
func NewCodes(characters map[string]string, rarities map[models.Rarity]string, sets map[string]string, extraCharacterCodes ...string) *Codes {
	c := &Codes{
		characters:     make(map[string]string, len(characters)),
		rarities:       make(map[models.Rarity]string, len(rarities)),
		sets:           make(map[string]string, len(sets)),
		characterCodes: make(map[string]struct{}),
		rarityCodes:    make(map[string]struct{}),
		setCodes:       make(map[string]struct{}),
	}
	for name, code := range characters {
		c.characters[name] = code
		c.characterCodes[code] = struct{}{}
	}
	for _, code := range extraCharacterCodes {
		if code != "" {
			c.characterCodes[code] = struct{}{}
		}
	}
	for r, code := range rarities {
		c.rarities[r] = code
		c.rarityCodes[code] = struct{}{}
	}
	for name, code := range sets {
		c.sets[name] = code
		c.setCodes[code] = struct{}{}
	}
	return c
}

func (c *Codes) CharacterCode(ref Ref) string {
	return lookup(ref, c.characters, c.characterCodes, UnknownCharacterCode)
}

func (c *Codes) RarityCode(ref Ref) string {
	if ref.kind == byCode {
		if _, ok := c.rarityCodes[ref.value]; ok {
			return ref.value
		}
		return UnknownRarityCode
	}
	if code, ok := c.rarities[models.Rarity(ref.value)]; ok {
		return code
	}
	return UnknownRarityCode
}

func (c *Codes) SetCode(ref Ref) string {
	return lookup(ref, c.sets, c.setCodes, UnknownSetCode)
}

func lookup(ref Ref, names map[string]string, codes map[string]struct{}, unknown string) string {
	if ref.kind == byCode {
		if _, ok := codes[ref.value]; ok {
			return ref.value
		}
		return unknown
	}
	if code, ok := names[ref.value]; ok {
		return code
	}
	return unknown
}
