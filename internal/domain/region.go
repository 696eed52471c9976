package domain

// RegionMapping pairs an administrative region with the NHS region that
// reports hospital capacity for it.
type RegionMapping struct {
	Region    string `json:"region"`
	NHSRegion string `json:"nhs_region"`
}

// regionMappings is ordered; join output follows this order.
var regionMappings = []RegionMapping{
	{Region: "England", NHSRegion: "England"},
	{Region: "South East", NHSRegion: "South East"},
	{Region: "Scotland", NHSRegion: "Scotland"},
	{Region: "Wales", NHSRegion: "Wales"},
	{Region: "London", NHSRegion: "London"},
	{Region: "South West", NHSRegion: "South West"},
	{Region: "East of England", NHSRegion: "East of England"},
	{Region: "North West", NHSRegion: "North West"},
	{Region: "Yorkshire and The Humber", NHSRegion: "North East and Yorkshire"},
	{Region: "West Midlands", NHSRegion: "Midlands"},
	{Region: "East Midlands", NHSRegion: "Midlands"},
	{Region: "North East", NHSRegion: "North East and Yorkshire"},
	{Region: "Northern Ireland", NHSRegion: "Northern Ireland"},
}

var (
	nhsRegions     = distinctNHSRegions(regionMappings)
	regionToNHS    = indexMappings(regionMappings)
	fallbackRecord = buildFallbackRecords(nhsRegions)
)

// RegionMappings returns a copy of the administrative → NHS region table.
func RegionMappings() []RegionMapping {
	out := make([]RegionMapping, len(regionMappings))
	copy(out, regionMappings)
	return out
}

// NHSRegions returns the distinct NHS regions referenced by the mapping,
// in first-seen order.
func NHSRegions() []string {
	out := make([]string, len(nhsRegions))
	copy(out, nhsRegions)
	return out
}

// NHSRegionFor looks up the NHS region for an administrative region.
func NHSRegionFor(region string) (string, bool) {
	nhs, ok := regionToNHS[region]
	return nhs, ok
}

func distinctNHSRegions(mappings []RegionMapping) []string {
	seen := make(map[string]bool, len(mappings))
	out := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if seen[m.NHSRegion] {
			continue
		}
		seen[m.NHSRegion] = true
		out = append(out, m.NHSRegion)
	}
	return out
}

func indexMappings(mappings []RegionMapping) map[string]string {
	idx := make(map[string]string, len(mappings))
	for _, m := range mappings {
		idx[m.Region] = m.NHSRegion
	}
	return idx
}
