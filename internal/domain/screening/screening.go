// Package screening defines the toddler screening record, its feature layout
// and the fixed rules that turn a model probability into a response.
package screening

// Feature names in the exact order the classifier was trained on.
const (
	FieldA1               = "A1"
	FieldA2               = "A2"
	FieldA3               = "A3"
	FieldA4               = "A4"
	FieldA5               = "A5"
	FieldA6               = "A6"
	FieldA7               = "A7"
	FieldAgeMons          = "Age_Mons"
	FieldSex              = "Sex"
	FieldJaundice         = "Jaundice"
	FieldFamilyMemWithASD = "Family_mem_with_ASD"
)

// FeatureNames lists the eleven model features in positional order.
// Both the trainer and the inference service build vectors from it.
var FeatureNames = []string{ //nolint:gochecknoglobals // fixed feature contract
	FieldA1, FieldA2, FieldA3, FieldA4, FieldA5, FieldA6, FieldA7,
	FieldAgeMons, FieldSex, FieldJaundice, FieldFamilyMemWithASD,
}

// FeatureCount is the width of a feature vector.
const FeatureCount = 11

// Input is a validated screening record. All values are integers after coercion.
type Input struct {
	A1               int `json:"A1"`
	A2               int `json:"A2"`
	A3               int `json:"A3"`
	A4               int `json:"A4"`
	A5               int `json:"A5"`
	A6               int `json:"A6"`
	A7               int `json:"A7"`
	AgeMons          int `json:"Age_Mons"`
	Sex              int `json:"Sex"`
	Jaundice         int `json:"Jaundice"`
	FamilyMemWithASD int `json:"Family_mem_with_ASD"`
}

// field returns a pointer to the struct field backing a feature name.
func (in *Input) field(name string) *int {
	switch name {
	case FieldA1:
		return &in.A1
	case FieldA2:
		return &in.A2
	case FieldA3:
		return &in.A3
	case FieldA4:
		return &in.A4
	case FieldA5:
		return &in.A5
	case FieldA6:
		return &in.A6
	case FieldA7:
		return &in.A7
	case FieldAgeMons:
		return &in.AgeMons
	case FieldSex:
		return &in.Sex
	case FieldJaundice:
		return &in.Jaundice
	case FieldFamilyMemWithASD:
		return &in.FamilyMemWithASD
	default:
		return nil
	}
}

// Value returns the integer value of the named feature, or 0 for unknown names.
func (in Input) Value(name string) int {
	if p := in.field(name); p != nil {
		return *p
	}
	return 0
}

// Vector returns the feature vector in FeatureNames order.
func (in Input) Vector() []float64 {
	v := make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		v[i] = float64(in.Value(name))
	}
	return v
}

// Result is the response returned for a single screening.
type Result struct {
	Prediction  string   `json:"prediction"`
	Probability float64  `json:"probability"`
	Severity    string   `json:"severity,omitempty"`
	KeyFactors  []string `json:"key_factors"`
}
