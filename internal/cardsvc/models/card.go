package models

import (
	"fmt"
	"strings"
)

// CardTemplate is a static catalog entry. Templates sharing a character name
// are told apart by Variant and Set.
type CardTemplate struct {
	Name       string `json:"name"`
	Variant    string `json:"variant"` // per-template character code, selects the art
	Set        string `json:"set"`
	Rarity     Rarity `json:"rarity"`
	BaseStats  Stats  `json:"base_stats"`
	DropWeight int    `json:"drop_weight"` // relative likelihood, 0 = never drawn
}

// CardInstance is one issued card. It is passed by value and never changed
// after the serial number is assigned.
type CardInstance struct {
	Name         string `json:"name"`
	Variant      string `json:"variant,omitempty"`
	Set          string `json:"set"`
	Rarity       Rarity `json:"rarity"`
	Stats        Stats  `json:"stats"`
	SerialNumber string `json:"serial_number"`
}

// CardRecord is the persisted form of an owned card.
type CardRecord struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
	Set          string `json:"set"`
	Rarity       Rarity `json:"rarity"`
	Stats        Stats  `json:"stats"`
	Variant      string `json:"variant,omitempty"`
}

func (c CardInstance) Record() CardRecord {
	return CardRecord{
		SerialNumber: c.SerialNumber,
		Name:         c.Name,
		Set:          c.Set,
		Rarity:       c.Rarity,
		Stats:        c.Stats,
		Variant:      c.Variant,
	}
}

func (c CardInstance) String() string {
	return c.Record().String()
}

// String renders the card as the text-only fallback used when no image is
// available.
func (r CardRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	fmt.Fprintf(&b, "Set: %s\n", r.Set)
	fmt.Fprintf(&b, "Rarity: %s\n", r.Rarity)
	fmt.Fprintf(&b, "Serial Number: %s\n", r.SerialNumber)
	b.WriteString("Stats:")
	b.WriteString(r.Stats.Lines())
	return b.String()
}

// Lines returns "\n- Name: value" for every stat.
func (s Stats) Lines() string {
	var b strings.Builder
	for _, f := range s.Fields() {
		fmt.Fprintf(&b, "\n- %s: %d", f.Name, f.Value)
	}
	return b.String()
}
