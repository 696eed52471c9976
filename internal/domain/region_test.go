package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionMappings(t *testing.T) {
	mappings := RegionMappings()
	require.Len(t, mappings, 13)
	assert.Equal(t, RegionMapping{Region: "England", NHSRegion: "England"}, mappings[0])
	assert.Equal(t, RegionMapping{Region: "Northern Ireland", NHSRegion: "Northern Ireland"}, mappings[12])

	seen := map[string]bool{}
	for _, m := range mappings {
		assert.False(t, seen[m.Region], "duplicate region %q", m.Region)
		seen[m.Region] = true
	}
}

func TestRegionMappings_ReturnsCopy(t *testing.T) {
	mappings := RegionMappings()
	mappings[0].NHSRegion = "Atlantis"

	nhs, ok := NHSRegionFor("England")
	require.True(t, ok)
	assert.Equal(t, "England", nhs)
	assert.Equal(t, "England", RegionMappings()[0].NHSRegion)
}

func TestNHSRegions(t *testing.T) {
	assert.Equal(t, []string{
		"England",
		"South East",
		"Scotland",
		"Wales",
		"London",
		"South West",
		"East of England",
		"North West",
		"North East and Yorkshire",
		"Midlands",
		"Northern Ireland",
	}, NHSRegions())
}

func TestNHSRegionFor(t *testing.T) {
	tests := []struct {
		region string
		want   string
		ok     bool
	}{
		{"Yorkshire and The Humber", "North East and Yorkshire", true},
		{"North East", "North East and Yorkshire", true},
		{"West Midlands", "Midlands", true},
		{"East Midlands", "Midlands", true},
		{"London", "London", true},
		{"Narnia", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			got, ok := NHSRegionFor(tt.region)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
