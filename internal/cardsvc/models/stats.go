package models

// Stats is the fixed six-stat block printed on every card.
type Stats struct {
	Offense int `json:"Offense"`
	Speed   int `json:"Speed"`
	Defense int `json:"Defense"`
	Pass    int `json:"Pass"`
	Dribble int `json:"Dribble"`
	Shoot   int `json:"Shoot"`
}

type StatField struct {
	Name  string
	Abbr  string // e.g. OFF, used on the rendered card
	Value int
}

// Fields returns the stats in card order.
func (s Stats) Fields() []StatField {
	return []StatField{
		{Name: "Offense", Abbr: "OFF", Value: s.Offense},
		{Name: "Speed", Abbr: "SPD", Value: s.Speed},
		{Name: "Defense", Abbr: "DEF", Value: s.Defense},
		{Name: "Pass", Abbr: "PAS", Value: s.Pass},
		{Name: "Dribble", Abbr: "DRI", Value: s.Dribble},
		{Name: "Shoot", Abbr: "SHO", Value: s.Shoot},
	}
}

// Map applies f to every stat independently, in card order.
func (s Stats) Map(f func(base int) int) Stats {
	return Stats{
		Offense: f(s.Offense),
		Speed:   f(s.Speed),
		Defense: f(s.Defense),
		Pass:    f(s.Pass),
		Dribble: f(s.Dribble),
		Shoot:   f(s.Shoot),
	}
}
