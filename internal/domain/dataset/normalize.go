package dataset

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/asdscreen/internal/domain/screening"
)

// LabelColumn holds the Yes/No target.
const LabelColumn = "Class/ASD Traits"

// emptyValue is how blank cells appear in the anomaly report.
const emptyValue = "<empty>"

// labelValues maps the trimmed, case-sensitive target to a class.
var labelValues = map[string]int{"Yes": 1, "No": 0} //nolint:gochecknoglobals // fixed vocabulary

// categorical maps lower-cased, trimmed values of the coded columns.
var categorical = map[string]map[string]int{ //nolint:gochecknoglobals // fixed vocabulary
	screening.FieldSex:              {"m": 1, "f": 0},
	screening.FieldJaundice:         {"yes": 1, "no": 0},
	screening.FieldFamilyMemWithASD: {"yes": 1, "no": 0},
}

// Samples is a feature matrix in screening.FeatureNames order with labels.
type Samples struct {
	X [][]float64
	Y []int
}

// Len returns the number of samples.
func (s Samples) Len() int { return len(s.Y) }

// Report counts every data-quality anomaly met while normalising.
type Report struct {
	RowsRead int
	RowsUsed int

	// ExcludedLabels counts rows dropped because the label was not Yes/No.
	ExcludedLabels int
	UnmappedLabels map[string]int

	// Imputed counts, per feature column, cells replaced by 0.
	Imputed map[string]int
	// Unmapped holds, per feature column, the raw values that were imputed.
	Unmapped map[string]map[string]int
}

// Anomalies returns the total number of excluded rows and imputed cells.
func (r Report) Anomalies() int {
	n := r.ExcludedLabels
	for _, c := range r.Imputed {
		n += c
	}
	return n
}

// ImputedColumns returns the columns with imputed cells, sorted.
func (r Report) ImputedColumns() []string {
	cols := make([]string, 0, len(r.Imputed))
	for c := range r.Imputed {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func newReport() Report {
	return Report{
		UnmappedLabels: make(map[string]int),
		Imputed:        make(map[string]int),
		Unmapped:       make(map[string]map[string]int),
	}
}

func (r *Report) impute(column, raw string) {
	r.Imputed[column]++
	if r.Unmapped[column] == nil {
		r.Unmapped[column] = make(map[string]int)
	}
	if raw == "" {
		raw = emptyValue
	}
	r.Unmapped[column][raw]++
}

// Normalize converts raw rows into model samples.
//
// The label is trimmed and mapped Yes→1, No→0; rows with any other label are
// excluded. Sex (m/f), Jaundice and Family_mem_with_ASD (yes/no) are
// lower-cased and trimmed before mapping. Any feature cell that is missing,
// unmapped or not numeric is imputed as 0, the typical/negative category.
// Every exclusion and imputation is counted in the Report.
func Normalize(ctx context.Context, f *Frame) (Samples, Report, error) {
	report := newReport()

	labelCol, ok := f.Column(LabelColumn)
	if !ok {
		return Samples{}, report, fmt.Errorf("%q: %w", LabelColumn, ErrMissingColumn)
	}
	cols := make([]int, len(screening.FeatureNames))
	for i, name := range screening.FeatureNames {
		c, ok := f.Column(name)
		if !ok {
			return Samples{}, report, fmt.Errorf("%q: %w", name, ErrMissingColumn)
		}
		cols[i] = c
	}

	var s Samples
	for n, row := range f.Rows {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Samples{}, report, fmt.Errorf("normalize cancelled: %w", err)
			}
		}
		report.RowsRead++

		rawLabel := strings.TrimSpace(row[labelCol])
		label, ok := labelValues[rawLabel]
		if !ok {
			report.ExcludedLabels++
			if rawLabel == "" {
				rawLabel = emptyValue
			}
			report.UnmappedLabels[rawLabel]++
			continue
		}

		features := make([]float64, len(cols))
		for i, name := range screening.FeatureNames {
			features[i] = normalizeCell(&report, name, row[cols[i]])
		}
		s.X = append(s.X, features)
		s.Y = append(s.Y, label)
		report.RowsUsed++
	}

	if s.Len() == 0 {
		return Samples{}, report, ErrNoSamples
	}
	return s, report, nil
}

func normalizeCell(report *Report, column, raw string) float64 {
	if vocab, ok := categorical[column]; ok {
		v, ok := vocab[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			report.impute(column, strings.TrimSpace(raw))
			return 0
		}
		return float64(v)
	}
	trimmed := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		report.impute(column, trimmed)
		return 0
	}
	return v
}
