package catalog

import (
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
)

var characterCodes = map[string]string{
	"Isagi Yoichi":    "ISYO",
	"Kira Ryosuke":    "KIRY",
	"Kocchi Ponkotsu": "KOPO",
	"Kazeyama Matsu":  "KAMA",
	"Bachira Meguru":  "BAME",
	"Nagi Seishiro":   "NAGI",
	"Itoshi Rin":      "ITRI",
	"Mikage Reo":      "MIRE",
}

var rarityCodes = map[models.Rarity]string{
	models.Common:    "CM",
	models.Uncommon:  "UC",
	models.Rare:      "RA",
	models.Epic:      "EP",
	models.UltraRare: "UR",
	models.Legendary: "LG",
	models.Mythic:    "MY",
}

var setCodes = map[string]string{
	"Ichinan High":         "ICHI",
	"Matsukaze Kokuo High": "MTKZ",
	"1st Selection":        "1SLC",
	"2nd Selection":        "2SLC",
	"Neo Egoist League":    "NEL",
	"Samurai Blue":         "JFA",
}

func uniform(v int) models.Stats {
	return models.Stats{Offense: v, Speed: v, Defense: v, Pass: v, Dribble: v, Shoot: v}
}

var defaultTemplates = []models.CardTemplate{
	{
		Name: "Isagi Yoichi", Variant: "ISYO", Set: "Ichinan High", Rarity: models.Common,
		BaseStats:  uniform(40),
		DropWeight: 1000,
	},
	{
		Name: "Isagi Yoichi", Variant: "ISYO2", Set: "Ichinan High", Rarity: models.Common,
		BaseStats:  models.Stats{Offense: 40, Speed: 40, Defense: 45, Pass: 50, Dribble: 40, Shoot: 40},
		DropWeight: 500,
	},
	{
		Name: "Isagi Yoichi", Variant: "ISYO3", Set: "Ichinan High", Rarity: models.Common,
		BaseStats:  models.Stats{Offense: 40, Speed: 45, Defense: 40, Pass: 40, Dribble: 50, Shoot: 40},
		DropWeight: 500,
	},
	{
		Name: "Kira Ryosuke", Variant: "KIRY", Set: "Matsukaze Kokuo High", Rarity: models.Uncommon,
		BaseStats:  models.Stats{Offense: 45, Speed: 60, Defense: 44, Pass: 45, Dribble: 45, Shoot: 60},
		DropWeight: 100,
	},
	{
		Name: "Kira Ryosuke", Variant: "KIRY2", Set: "Matsukaze Kokuo High", Rarity: models.Uncommon,
		BaseStats:  models.Stats{Offense: 55, Speed: 60, Defense: 40, Pass: 45, Dribble: 40, Shoot: 70},
		DropWeight: 100,
	},
	{
		Name: "Kocchi Ponkotsu", Variant: "KOPO", Set: "Matsukaze Kokuo High", Rarity: models.Common,
		BaseStats:  uniform(35),
		DropWeight: 1000,
	},
	{
		Name: "Kazeyama Matsu", Variant: "KAMA", Set: "Matsukaze Kokuo High", Rarity: models.Common,
		BaseStats:  uniform(35),
		DropWeight: 1000,
	},
	{
		Name: "Isagi Yoichi", Variant: "ISYO", Set: "Samurai Blue", Rarity: models.Legendary,
		BaseStats:  models.Stats{Offense: 97, Speed: 97, Defense: 85, Pass: 83, Dribble: 80, Shoot: 95},
		DropWeight: 1,
	},
}

// DefaultCodes returns the built-in code tables. Every template variant is a
// valid character code.
func DefaultCodes() *Codes {
	variants := make([]string, 0, len(defaultTemplates))
	for _, t := range defaultTemplates {
		variants = append(variants, t.Variant)
	}
	return NewCodes(characterCodes, rarityCodes, setCodes, variants...)
}

// Default returns the built-in catalog. It panics if the built-in data is
// invalid, which is a programming error.
func Default() *Catalog {
	c, err := New(defaultTemplates, DefaultCodes())
	if err != nil {
		panic("catalog: built-in templates are invalid: " + err.Error())
	}
	return c
}
