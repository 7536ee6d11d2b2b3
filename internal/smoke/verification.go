package smoke

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"

	"github.com/okian/asdscreen/internal/domain/screening"
)

const decimalTolerance = 1e-6

// VerifyResult checks a served result against the screening rules for in.
func VerifyResult(in screening.Input, res screening.Result) error {
	p := res.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("probability %v outside [0,1]", p)
	}
	if scaled := p * 1000; math.Abs(scaled-math.Round(scaled)) > decimalTolerance {
		return fmt.Errorf("probability %v has more than 3 decimal places", p)
	}
	if want := screening.Classify(p); res.Prediction != want {
		return fmt.Errorf("prediction %q for probability %v, want %q", res.Prediction, p, want)
	}
	if res.Severity != "" {
		if want := screening.SeverityFor(p); res.Severity != want {
			return fmt.Errorf("severity %q for probability %v, want %q", res.Severity, p, want)
		}
	}
	if res.KeyFactors == nil {
		return fmt.Errorf("key_factors is null")
	}
	if want := screening.KeyFactors(in); !slices.Equal(res.KeyFactors, want) {
		return fmt.Errorf("key_factors %q, want %q", res.KeyFactors, want)
	}
	return nil
}

type errorBody struct {
	Code   string   `json:"code"`
	Fields []string `json:"fields"`
}

// VerifyRejection checks that a payload missing field was refused with 400
// and that the response names the field.
func VerifyRejection(status int, body []byte, field string) error {
	if status != http.StatusBadRequest {
		return fmt.Errorf("missing %s: status %d, want %d", field, status, http.StatusBadRequest)
	}
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("missing %s: decode error body: %w", field, err)
	}
	if e.Code != "bad_request" {
		return fmt.Errorf("missing %s: code %q, want bad_request", field, e.Code)
	}
	if !slices.Equal(e.Fields, []string{field}) {
		return fmt.Errorf("missing %s: fields %q", field, e.Fields)
	}
	return nil
}
