package smoke

import (
	"math/rand/v2"
	"strconv"

	"github.com/okian/asdscreen/internal/domain/screening"
)

const (
	minAgeMons = 12
	maxAgeMons = 36

	// one in stringEvery values is sent as a numeric string
	stringEvery = 4
)

// Case is one generated payload with the record it should parse to.
type Case struct {
	Input   screening.Input
	Payload map[string]any
}

// GenerateCases returns n deterministic cases for seed. Binary fields are
// uniform 0/1, ages span 12..36 months and some values are encoded as
// numeric strings to exercise coercion.
func GenerateCases(seed int64, n int) []Case {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)) //nolint:gosec // test data
	cases := make([]Case, n)
	for i := range cases {
		in := screening.Input{
			A1:               r.IntN(2),
			A2:               r.IntN(2),
			A3:               r.IntN(2),
			A4:               r.IntN(2),
			A5:               r.IntN(2),
			A6:               r.IntN(2),
			A7:               r.IntN(2),
			AgeMons:          minAgeMons + r.IntN(maxAgeMons-minAgeMons+1),
			Sex:              r.IntN(2),
			Jaundice:         r.IntN(2),
			FamilyMemWithASD: r.IntN(2),
		}
		payload := make(map[string]any, screening.FeatureCount)
		for _, name := range screening.FeatureNames {
			v := in.Value(name)
			if r.IntN(stringEvery) == 0 {
				payload[name] = strconv.Itoa(v)
			} else {
				payload[name] = v
			}
		}
		cases[i] = Case{Input: in, Payload: payload}
	}
	return cases
}

// WithoutField copies payload and drops name.
func WithoutField(payload map[string]any, name string) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != name {
			out[k] = v
		}
	}
	return out
}
