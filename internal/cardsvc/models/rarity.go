package models

type Rarity string

const (
	Common    Rarity = "Common"
	Uncommon  Rarity = "Uncommon"
	Rare      Rarity = "Rare"
	Epic      Rarity = "Epic"
	UltraRare Rarity = "Ultra Rare"
	Legendary Rarity = "Legendary"
	Mythic    Rarity = "Mythic"
)

// Rarities lists every rarity from most to least common.
var Rarities = []Rarity{Common, Uncommon, Rare, Epic, UltraRare, Legendary, Mythic}

func (r Rarity) Valid() bool {
	for _, known := range Rarities {
		if r == known {
			return true
		}
	}
	return false
}
