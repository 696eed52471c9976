package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/export"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type handlers struct {
	tables TableSource
	logger *slog.Logger
}

type regionsResponse struct {
	Regions    []domain.RegionMapping `json:"regions"`
	NHSRegions []string               `json:"nhs_regions"`
}

type hospitalCasesResponse struct {
	Source      domain.Source `json:"source"`
	GeneratedAt time.Time     `json:"generated_at"`
	Columns     []string      `json:"columns"`
	Region      string        `json:"region,omitempty"`
	Rows        []domain.Row  `json:"rows"`
}

func (h *handlers) regions(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, regionsResponse{
		Regions:    domain.RegionMappings(),
		NHSRegions: domain.NHSRegions(),
	})
}

func (h *handlers) hospitalCases(w http.ResponseWriter, r *http.Request) {
	table, region, ok := h.selectTable(w, r)
	if !ok {
		return
	}
	rows := table.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, hospitalCasesResponse{
		Source:      table.Source,
		GeneratedAt: table.GeneratedAt,
		Columns:     table.Columns(),
		Region:      region,
		Rows:        rows,
	})
}

func (h *handlers) hospitalCasesCSV(w http.ResponseWriter, r *http.Request) {
	table, _, ok := h.selectTable(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.FormatCSV.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="hospital_cases.csv"`)
	w.Header().Set("X-Data-Source", string(table.Source))
	if err := export.WriteCSV(w, table); err != nil {
		h.logger.Warn("write csv response", "error", err)
	}
}

// selectTable resolves the latest table, narrowed to ?region= when given.
// It writes the error response itself and returns false on failure.
func (h *handlers) selectTable(w http.ResponseWriter, r *http.Request) (domain.Table, string, bool) {
	table, ok := h.tables.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no hospitalization table loaded yet")
		return domain.Table{}, "", false
	}

	region := r.URL.Query().Get("region")
	if region == "" {
		return table, "", true
	}
	if _, known := domain.NHSRegionFor(region); !known {
		writeError(w, http.StatusNotFound, "unknown region "+region)
		return domain.Table{}, "", false
	}
	table.Rows = table.ForRegion(region)
	return table, region, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
