// Command genmock writes a synthetic dashboard CSV of NHS region hospital
// cases and, optionally, the joined table the loader builds from it. The table
// fixture is produced through the real parser and domain package under a fixed
// clock, so it matches pipeline behavior exactly.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -from 2020-06-30 -to 2020-07-03 \
//	  -null "South West@2020-07-02" \
//	  -out data/mock/nhs_region_hospital_cases.csv
//
// With -serve the CSV is served over HTTP instead, for running the service
// offline:
//
//	go run ./cmd/genmock -serve :9090 &
//	SOURCE_URL=http://localhost:9090/v2/data go run ./cmd/etl
package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/coviddata"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/export"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
)

// area is one NHS region as the dashboard reports it.
type area struct {
	code string
	name string
}

// English NHS regions in dashboard order. The devolved nations are not
// reported with areaType=nhsRegion.
var areas = []area{
	{code: "E40000003", name: "London"},
	{code: "E40000008", name: "Midlands"},
	{code: "E40000009", name: "North East and Yorkshire"},
	{code: "E40000010", name: "North West"},
	{code: "E40000005", name: "South East"},
	{code: "E40000006", name: "South West"},
	{code: "E40000007", name: "East of England"},
}

var header = []string{"areaCode", "areaName", "areaType", "date", "hospitalCases"}

// genOptions controls CSV generation.
type genOptions struct {
	from, to time.Time
	seed     uint64
	jitter   int
	nullRate float64
	nulls    map[string]bool // "Region@2006-01-02"
}

// nullList collects repeated -null flags.
type nullList map[string]bool

func (n nullList) String() string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	return strings.Join(keys, ",")
}

func (n nullList) Set(v string) error {
	region, date, ok := strings.Cut(v, "@")
	if !ok || region == "" {
		return fmt.Errorf("want Region@YYYY-MM-DD, got %q", v)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("bad date in %q: %w", v, err)
	}
	n[v] = true
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	nulls := nullList{}
	from := flag.String("from", "2020-06-28", "first date (inclusive)")
	to := flag.String("to", "2020-07-14", "last date (inclusive)")
	seed := flag.Uint64("seed", 1, "random seed for jitter and -null-rate")
	jitter := flag.Int("jitter", 0, "max random +/- added to each count")
	nullRate := flag.Float64("null-rate", 0, "probability that a count is left empty")
	flag.Var(nulls, "null", "leave Region@YYYY-MM-DD empty (repeatable)")
	out := flag.String("out", "", "output path for the dashboard CSV")
	tableOut := flag.String("table-out", "", "output path for the expected joined table JSON")
	serve := flag.String("serve", "", "serve the CSV on this address instead of writing it")
	flag.Parse()

	if *out == "" && *serve == "" {
		flag.Usage()
		return errors.New("one of -out or -serve is required")
	}

	opts := genOptions{seed: *seed, jitter: *jitter, nullRate: *nullRate, nulls: nulls}
	var err error
	if opts.from, err = time.Parse(domain.DateLayout, *from); err != nil {
		return fmt.Errorf("parse -from: %w", err)
	}
	if opts.to, err = time.Parse(domain.DateLayout, *to); err != nil {
		return fmt.Errorf("parse -to: %w", err)
	}
	if opts.to.Before(opts.from) {
		return fmt.Errorf("-to %s is before -from %s", *to, *from)
	}
	if opts.nullRate < 0 || opts.nullRate > 1 {
		return fmt.Errorf("-null-rate must be within [0, 1], got %v", opts.nullRate)
	}

	data, err := generate(opts)
	if err != nil {
		return err
	}
	log.Printf("generated %d areas x %d days", len(areas), days(opts))

	if *tableOut != "" {
		if err := writeTable(*tableOut, data); err != nil {
			return fmt.Errorf("writing table fixture: %w", err)
		}
		log.Printf("wrote table fixture: %s", *tableOut)
	}

	if *serve != "" {
		return serveCSV(*serve, data)
	}

	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote dashboard CSV: %s", *out)
	return nil
}

func days(o genOptions) int {
	return int(o.to.Sub(o.from).Hours()/24) + 1
}

// generate renders the CSV newest date first within each area, the order
// the dashboard uses. Counts follow 400 + 97*area - 11*daysBeforeTo.
func generate(o genOptions) ([]byte, error) {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	n := days(o)
	for i, a := range areas {
		for j := range n {
			date := o.to.AddDate(0, 0, -j).Format(domain.DateLayout)
			cases := ""
			if !o.nulls[a.name+"@"+date] && (o.nullRate == 0 || rng.Float64() >= o.nullRate) {
				v := 400 + 97*i - 11*j
				if o.jitter > 0 {
					v += rng.IntN(2*o.jitter+1) - o.jitter
				}
				cases = strconv.Itoa(max(v, 0))
			}
			if err := w.Write([]string{a.code, a.name, "nhsRegion", date, cases}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// writeTable runs the CSV through the real parser and join under a fixed
// clock so generated_at is reproducible.
func writeTable(path string, data []byte) error {
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2021, time.March, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	records, err := coviddata.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return err
	}
	table := domain.JoinRegions(domain.RegionMappings(), domain.RemoteDataset(records))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func serveCSV(addr string, data []byte) error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write(data)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("serving dashboard CSV on %s", addr)
	return srv.ListenAndServe()
}
