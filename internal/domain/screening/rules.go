package screening

import "math"

// Prediction labels.
const (
	LabelPositive = "ASD traits detected"
	LabelNegative = "No ASD traits detected"
)

// Threshold is the inclusive cutoff for the positive label: prob >= Threshold.
const Threshold = 0.5

// Severity bands and their lower bounds.
const (
	SeverityLow      = "Low / No ASD traits"
	SeverityMild     = "Mild ASD traits"
	SeverityModerate = "Moderate ASD traits"
	SeveritySevere   = "Severe ASD traits"

	mildFrom     = 0.33
	moderateFrom = 0.66
	severeFrom   = 0.85
)

const probabilityScale = 1000

// Classify maps a probability to one of the two prediction labels.
func Classify(prob float64) string {
	if prob >= Threshold {
		return LabelPositive
	}
	return LabelNegative
}

// SeverityFor maps a probability to its severity band. The bands partition
// [0,1] as [0,0.33), [0.33,0.66), [0.66,0.85), [0.85,1].
func SeverityFor(prob float64) string {
	switch {
	case prob < mildFrom:
		return SeverityLow
	case prob < moderateFrom:
		return SeverityMild
	case prob < severeFrom:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// Severities lists the bands from lowest to highest.
func Severities() []string {
	return []string{SeverityLow, SeverityMild, SeverityModerate, SeveritySevere}
}

// RoundProbability clamps p to [0,1] and rounds it to three decimal places.
func RoundProbability(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return math.Round(p*probabilityScale) / probabilityScale
}

type keyFactor struct {
	field   string
	trigger int
	message string
}

// keyFactorTable is evaluated in order; output order follows it.
var keyFactorTable = []keyFactor{ //nolint:gochecknoglobals // static rule table
	{FieldA1, 1, "Does not respond to name (A1)"},
	{FieldA2, 1, "Poor eye contact (A2)"},
	{FieldA3, 1, "Does not point to objects (A3)"},
	{FieldA4, 1, "No pretend or imaginative play (A4)"},
	{FieldA5, 1, "Does not follow gaze (A5)"},
	{FieldA6, 1, "Difficulty understanding speech (A6)"},
	{FieldA7, 1, "Limited use of gestures (A7)"},
	{FieldFamilyMemWithASD, 1, "Family history of ASD"},
}

// KeyFactors returns the rule-table messages triggered by the input.
// The result is never nil.
func KeyFactors(in Input) []string {
	out := make([]string, 0, len(keyFactorTable))
	for _, kf := range keyFactorTable {
		if in.Value(kf.field) == kf.trigger {
			out = append(out, kf.message)
		}
	}
	return out
}

// Evaluate builds the response for a positive-class probability.
// Classification and banding use the rounded probability so the reported
// number and the label always agree.
func Evaluate(in Input, positiveProb float64, withSeverity bool) Result {
	prob := RoundProbability(positiveProb)
	res := Result{
		Prediction:  Classify(prob),
		Probability: prob,
		KeyFactors:  KeyFactors(in),
	}
	if withSeverity {
		res.Severity = SeverityFor(prob)
	}
	return res
}
