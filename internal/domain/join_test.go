package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return &d
}

func sampleRecords(t *testing.T) []HospitalRecord {
	t.Helper()
	return []HospitalRecord{
		{NHSRegion: "London", Date: day(t, "2020-06-30"), Cases: Cases(900)},
		{NHSRegion: "London", Date: day(t, "2020-07-01"), Cases: Cases(850)},
		{NHSRegion: "London", Date: day(t, "2020-07-02"), Cases: NullCases()},
		{NHSRegion: "London", Date: day(t, "2020-07-03"), Cases: Cases(820)},
		{NHSRegion: "Midlands", Date: day(t, "2020-07-01"), Cases: Cases(610)},
		{NHSRegion: "North East and Yorkshire", Date: day(t, "2020-07-01"), Cases: Cases(540)},
		{NHSRegion: "North East and Yorkshire", Date: day(t, "2020-07-02"), Cases: Cases(530)},
		{NHSRegion: "England", Date: day(t, "2020-07-01"), Cases: Cases(4200)},
	}
}

func TestFilterRecords(t *testing.T) {
	got := FilterRecords(sampleRecords(t), ReportingStart)
	require.Len(t, got, 6)
	for _, r := range got {
		require.NotNil(t, r.Date)
		assert.False(t, r.Date.Before(ReportingStart), "record dated %s kept", r.Date.Format(DateLayout))
		assert.False(t, r.Cases.IsNull())
	}
}

func TestFilterRecords_DropsUndated(t *testing.T) {
	got := FilterRecords([]HospitalRecord{{NHSRegion: "London", Cases: Cases(1)}}, ReportingStart)
	assert.Empty(t, got)
}

func TestFallbackDataset(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	ds := FallbackDataset(cause)

	assert.True(t, ds.IsFallback())
	assert.Equal(t, cause, ds.FetchErr)
	require.Len(t, ds.Records, len(NHSRegions()))
	for i, r := range ds.Records {
		assert.Equal(t, NHSRegions()[i], r.NHSRegion)
		assert.Nil(t, r.Date)
		assert.True(t, r.Cases.IsMissing())
	}

	// Mutating one fallback must not leak into the next.
	ds.Records[0].Cases = Cases(1)
	assert.True(t, FallbackDataset(cause).Records[0].Cases.IsMissing())
}

func TestJoinRegions_Remote(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2021, time.January, 5, 9, 0, 0, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() { SetClock(nil) })

	table := JoinRegions(RegionMappings(), RemoteDataset(sampleRecords(t)))

	assert.Equal(t, SourceRemote, table.Source)
	assert.Equal(t, fakeClock.Now(), table.GeneratedAt)

	t.Run("every region appears as one contiguous group", func(t *testing.T) {
		regions := table.Regions()
		want := make([]string, 0, 13)
		for _, m := range RegionMappings() {
			want = append(want, m.Region)
		}
		assert.Equal(t, want, regions)
	})

	t.Run("no rows before reporting start", func(t *testing.T) {
		for _, r := range table.Rows {
			if r.Date != nil {
				assert.False(t, r.Date.Before(ReportingStart))
			}
		}
	})

	t.Run("matched rows carry counts", func(t *testing.T) {
		london := table.ForRegion("London")
		require.Len(t, london, 2)
		assert.Equal(t, "2020-07-01", london[0].DateString())
		assert.Equal(t, Cases(850), london[0].Cases)
		assert.Equal(t, "2020-07-03", london[1].DateString())
		assert.Equal(t, Cases(820), london[1].Cases)
	})

	t.Run("unmatched regions get a single null row", func(t *testing.T) {
		wales := table.ForRegion("Wales")
		require.Len(t, wales, 1)
		assert.Nil(t, wales[0].Date)
		assert.True(t, wales[0].Cases.IsNull())
	})

	t.Run("regions sharing an NHS region get identical rows", func(t *testing.T) {
		yorkshire := table.ForRegion("Yorkshire and The Humber")
		northEast := table.ForRegion("North East")
		require.Len(t, yorkshire, 2)
		assertSameObservations(t, yorkshire, northEast)
		assertSameObservations(t, table.ForRegion("West Midlands"), table.ForRegion("East Midlands"))
	})
}

func TestJoinRegions_Fallback(t *testing.T) {
	table := JoinRegions(RegionMappings(), FallbackDataset(errors.New("timeout")))

	assert.Equal(t, SourceFallback, table.Source)
	require.Len(t, table.Rows, 13)
	for _, r := range table.Rows {
		assert.Nil(t, r.Date, r.Region)
		assert.Equal(t, MissingSentinel, r.Cases.String(), r.Region)
	}
}

func TestJoinRegions_EmptyDataset(t *testing.T) {
	table := JoinRegions(RegionMappings(), RemoteDataset(nil))
	require.Len(t, table.Rows, 13)
	for _, r := range table.Rows {
		assert.True(t, r.Cases.IsNull())
	}
}

func TestRow_JSONHasNoNHSRegion(t *testing.T) {
	table := JoinRegions(RegionMappings(), RemoteDataset(sampleRecords(t)))

	data, err := json.Marshal(table.Rows)
	require.NoError(t, err)

	var generic []map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, row := range generic {
		assert.NotContains(t, row, "NHSRegion")
		assert.NotContains(t, row, "nhs_region")
		assert.Len(t, row, 3)
	}
	assert.Equal(t, []string{"region", "date", "hospital_cases"}, table.Columns())
}

func TestRow_JSONRoundTrip(t *testing.T) {
	rows := []Row{
		{Region: "London", Date: day(t, "2020-07-01"), Cases: Cases(850)},
		{Region: "Wales", Cases: NullCases()},
		{Region: "Scotland", Cases: MissingCases()},
	}
	data, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"region":"London","date":"2020-07-01","hospital_cases":850},
		{"region":"Wales","date":null,"hospital_cases":null},
		{"region":"Scotland","date":null,"hospital_cases":"missing"}
	]`, string(data))

	var back []Row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rows, back)
}

func assertSameObservations(t *testing.T, a, b []Row) {
	t.Helper()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].DateString(), b[i].DateString())
		assert.Equal(t, a[i].Cases, b[i].Cases)
	}
}
