// Package inmate defines the core domain entity of the asylum roster.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package inmate

import "strings"

// Status is the only field the simulation mutates.
type Status string

const (
	StatusCaptured Status = "captured"
	StatusEscaped  Status = "escaped"
	// StatusUnknown is returned for ids that are not on the roster.
	StatusUnknown Status = ""
)

// Valid reports whether s is one of the two real states.
func (s Status) Valid() bool {
	return s == StatusCaptured || s == StatusEscaped
}

// PowerStats mirrors the upstream stat sheet. Values are kept as the upstream strings
// ("100", "null", "").
type PowerStats struct {
	Intelligence string `json:"intelligence"`
	Strength     string `json:"strength"`
	Speed        string `json:"speed"`
	Durability   string `json:"durability"`
	Power        string `json:"power"`
	Combat       string `json:"combat"`
}

// Stat is one labelled line of the stat sheet.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sheet returns the stats in display order, with "N/A" for missing values.
func (p PowerStats) Sheet() []Stat {
	return []Stat{
		{"Intelligence", orNA(p.Intelligence)},
		{"Strength", orNA(p.Strength)},
		{"Speed", orNA(p.Speed)},
		{"Durability", orNA(p.Durability)},
		{"Power", orNA(p.Power)},
		{"Combat", orNA(p.Combat)},
	}
}

func orNA(v string) string {
	if v == "" || v == "null" {
		return "N/A"
	}
	return v
}

// Inmate is an immutable identity record. Status lives in the roster, not here.
type Inmate struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	FullName   string     `json:"full_name"`
	Alignment  string     `json:"alignment"`
	Base       string     `json:"base"`
	ImageURL   string     `json:"image_url"`
	PowerStats PowerStats `json:"powerstats"`
}

// DisplayBase renders the base of operations; "-" means the upstream has none, which for
// these villains is Gotham.
func (i Inmate) DisplayBase() string {
	switch i.Base {
	case "-":
		return "Gotham City"
	case "":
		return "Unknown"
	}
	return i.Base
}

// DisplayFullName falls back to "Unknown".
func (i Inmate) DisplayFullName() string {
	if i.FullName == "" {
		return "Unknown"
	}
	return i.FullName
}

// relevantBases are matched case-insensitively against the base of operations.
// "-" keeps villains with no recorded base (Riddler); Santa Prisca keeps Bane.
var relevantBases = []string{"arkham", "gotham", "-", "santa prisca"}

// Qualifies reports whether a candidate belongs in Arkham: bad alignment and a relevant base.
func Qualifies(alignment, base string) bool {
	if alignment != "bad" {
		return false
	}
	b := strings.ToLower(base)
	for _, rb := range relevantBases {
		if strings.Contains(b, rb) {
			return true
		}
	}
	return false
}
