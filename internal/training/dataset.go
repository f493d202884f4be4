package training

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"refuge/pkg/errors"
)

// Column names in the UNHCR asylum-seekers CSV.
const (
	colCountry    = "Country / territory of asylum/residence"
	colOrigin     = "Origin"
	colProcedure  = "RSD procedure type / level"
	colPending    = "Tota pending start-year" // sic, dataset header typo
	colApplied    = "Applied during year"
	colRecognized = "decisions_recognized"
	colOther      = "decisions_other"
	colRejected   = "Rejected"
)

// Example is one cleaned training row: the three categorical features and
// the engineered acceptance-rate target.
type Example struct {
	Country   string
	Origin    string
	Procedure string
	Rate      float64
}

// LoadDataset reads the asylum-decisions CSV and applies the feature
// engineering: the caseload is pending-at-start plus applied-during-year,
// and the target is recognized decisions over caseload. Rows with missing,
// unparsable or non-finite values are dropped.
func LoadDataset(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()

	return readDataset(f)
}

func readDataset(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{
		colCountry, colOrigin, colProcedure,
		colPending, colApplied, colRecognized, colOther, colRejected,
	} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Newf("dataset is missing column %q", required)
		}
	}

	var examples []Example
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv row")
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		pending, ok1 := parseFloat(field(colPending))
		applied, ok2 := parseFloat(field(colApplied))
		recognized, ok3 := parseFloat(field(colRecognized))
		other, ok4 := parseFloat(field(colOther))
		rejected, ok5 := parseFloat(field(colRejected))
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}

		caseload := pending + applied
		rate := recognized / caseload
		pendingRate := other / caseload
		rejectionRate := rejected / caseload
		if !finite(rate) || !finite(pendingRate) || !finite(rejectionRate) {
			continue
		}

		country := field(colCountry)
		origin := field(colOrigin)
		procedure := field(colProcedure)
		if country == "" || origin == "" || procedure == "" {
			continue
		}

		examples = append(examples, Example{
			Country:   country,
			Origin:    origin,
			Procedure: procedure,
			Rate:      rate,
		})
	}

	if len(examples) == 0 {
		return nil, errors.New("dataset produced no usable rows")
	}
	return examples, nil
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
