package domain

// JoinRegions left-joins the region mapping onto a dataset by NHS region.
// Every mapped administrative region yields at least one row; regions whose
// NHS region has no records get a single row with null date and count.
// The NHS region is used as the join key only and is not carried into rows.
func JoinRegions(mappings []RegionMapping, data Dataset) Table {
	byNHS := make(map[string][]HospitalRecord, len(mappings))
	for _, rec := range data.Records {
		byNHS[rec.NHSRegion] = append(byNHS[rec.NHSRegion], rec)
	}

	rows := make([]Row, 0, len(data.Records)+len(mappings))
	for _, m := range mappings {
		matches := byNHS[m.NHSRegion]
		if len(matches) == 0 {
			rows = append(rows, Row{Region: m.Region, Cases: NullCases()})
			continue
		}
		for _, rec := range matches {
			rows = append(rows, Row{Region: m.Region, Date: rec.Date, Cases: rec.Cases})
		}
	}

	return Table{
		Rows:        rows,
		Source:      data.Source,
		GeneratedAt: clock.Now().UTC(),
	}
}
