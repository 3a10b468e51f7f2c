package inmate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifies(t *testing.T) {
	cases := []struct {
		name      string
		alignment string
		base      string
		want      bool
	}{
		{"arkham resident", "bad", "Arkham Asylum", true},
		{"gotham mixed case", "bad", "GOTHAM City", true},
		{"no recorded base", "bad", "-", true},
		{"santa prisca", "bad", "Santa Prisca", true},
		{"hero in gotham", "good", "Gotham City", false},
		{"neutral", "neutral", "Arkham Asylum", false},
		{"villain elsewhere", "bad", "Metropolis", false},
		{"empty base", "bad", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Qualifies(tc.alignment, tc.base))
		})
	}
}

func TestDisplayHelpers(t *testing.T) {
	riddler := Inmate{ID: "678", Name: "Riddler", Base: "-"}
	assert.Equal(t, "Gotham City", riddler.DisplayBase())
	assert.Equal(t, "Unknown", riddler.DisplayFullName())

	joker := Inmate{ID: "370", Name: "Joker", FullName: "Jack Napier", Base: "Arkham Asylum"}
	assert.Equal(t, "Arkham Asylum", joker.DisplayBase())
	assert.Equal(t, "Jack Napier", joker.DisplayFullName())

	assert.Equal(t, "Unknown", Inmate{}.DisplayBase())
}

func TestPowerStatsSheet(t *testing.T) {
	sheet := PowerStats{Intelligence: "100", Strength: "null", Combat: "90"}.Sheet()

	assert.Len(t, sheet, 6)
	assert.Equal(t, Stat{"Intelligence", "100"}, sheet[0])
	assert.Equal(t, Stat{"Strength", "N/A"}, sheet[1])
	assert.Equal(t, Stat{"Speed", "N/A"}, sheet[2])
	assert.Equal(t, Stat{"Combat", "90"}, sheet[5])
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCaptured.Valid())
	assert.True(t, StatusEscaped.Valid())
	assert.False(t, StatusUnknown.Valid())
	assert.False(t, Status("missing").Valid())
}
