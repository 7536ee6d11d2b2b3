package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/asdscreen/internal/config"
	"github.com/okian/asdscreen/internal/domain/dataset"
	"github.com/okian/asdscreen/internal/domain/forest"
	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
)

// Evaluation holds held-out metrics for the positive class.
type Evaluation struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// TrainReport summarises one training run.
type TrainReport struct {
	Data       dataset.Report `json:"data"`
	TrainRows  int            `json:"train_rows"`
	TestRows   int            `json:"test_rows"`
	Evaluation Evaluation     `json:"evaluation"`
	ModelPath  string         `json:"model_path"`
	Duration   time.Duration  `json:"duration"`
}

// Trainer fits the screening forest from the labelled CSV and writes the
// artifact the Service loads.
type Trainer struct {
	cfg    config.TrainerConfig
	logger logger.Logger
}

// NewTrainer builds a Trainer. A nil logger falls back to the global one.
func NewTrainer(cfg *config.TrainerConfig, l logger.Logger) *Trainer {
	if l == nil {
		l = logger.Get()
	}
	return &Trainer{cfg: *cfg, logger: l}
}

// Run loads and normalises the dataset, holds out a seeded test split, fits
// the forest, evaluates it on the held-out rows and saves the artifact.
func (t *Trainer) Run(ctx context.Context) (TrainReport, error) {
	started := time.Now()
	report := TrainReport{ModelPath: t.cfg.ModelPath}

	frame, err := dataset.LoadFile(ctx, t.cfg.DatasetPath)
	if err != nil {
		return report, err
	}
	t.logger.Info(ctx, "dataset loaded",
		logger.String("path", t.cfg.DatasetPath),
		logger.Int("rows", frame.Len()),
	)

	samples, dataReport, err := dataset.Normalize(ctx, frame)
	report.Data = dataReport
	t.warnAnomalies(ctx, dataReport)
	if err != nil {
		return report, fmt.Errorf("normalize dataset: %w", err)
	}

	split, err := dataset.TrainTestSplit(samples, t.cfg.TestRatio, t.cfg.Seed)
	if err != nil {
		return report, fmt.Errorf("split dataset: %w", err)
	}
	report.TrainRows = split.Train.Len()
	report.TestRows = split.Test.Len()

	f := forest.New(
		forest.WithTrees(t.cfg.Trees),
		forest.WithSeed(t.cfg.Seed),
		forest.WithMaxDepth(t.cfg.MaxDepth),
		forest.WithMinSamplesLeaf(t.cfg.MinSamplesLeaf),
		forest.WithWorkers(t.cfg.Workers),
		forest.WithFeatureNames(screening.FeatureNames),
	)
	t.logger.Info(ctx, "fitting forest",
		logger.Int("trees", t.cfg.Trees),
		logger.Int("trainRows", report.TrainRows),
		logger.Int("testRows", report.TestRows),
	)
	if err := f.Fit(ctx, split.Train.X, split.Train.Y); err != nil {
		return report, fmt.Errorf("fit forest: %w", err)
	}

	eval, err := Evaluate(f, split.Test)
	if err != nil {
		return report, fmt.Errorf("evaluate forest: %w", err)
	}
	report.Evaluation = eval
	t.logger.Info(ctx, "held-out evaluation",
		logger.Int("samples", eval.Samples),
		logger.Float64("accuracy", eval.Accuracy),
		logger.Float64("precision", eval.Precision),
		logger.Float64("recall", eval.Recall),
		logger.Float64("f1", eval.F1),
	)

	if err := f.Save(t.cfg.ModelPath); err != nil {
		return report, err
	}
	report.Duration = time.Since(started)
	t.logger.Info(ctx, "model trained and saved",
		logger.String("path", t.cfg.ModelPath),
		logger.Duration("took", report.Duration),
	)
	return report, nil
}

func (t *Trainer) warnAnomalies(ctx context.Context, r dataset.Report) {
	if r.ExcludedLabels > 0 {
		t.logger.Warn(ctx, "rows excluded for unmapped label",
			logger.String("column", dataset.LabelColumn),
			logger.Int("rows", r.ExcludedLabels),
			logger.String("values", joinCounts(r.UnmappedLabels)),
		)
	}
	for _, col := range r.ImputedColumns() {
		t.logger.Warn(ctx, "cells imputed as 0",
			logger.String("column", col),
			logger.Int("cells", r.Imputed[col]),
			logger.String("values", joinCounts(r.Unmapped[col])),
		)
	}
}

// joinCounts renders {"x":2,"y":1} as "x(2), y(1)" in key order.
func joinCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s(%d)", k, m[k])
	}
	return strings.Join(parts, ", ")
}

// Evaluate scores test samples with the serving threshold and returns
// positive-class metrics. Undefined ratios are reported as 0.
func Evaluate(model Prober, test dataset.Samples) (Evaluation, error) {
	var e Evaluation
	for i, x := range test.X {
		probs, err := model.PredictProba(x)
		if err != nil {
			return Evaluation{}, fmt.Errorf("sample %d: %w", i, err)
		}
		if len(probs) <= positiveClass {
			return Evaluation{}, fmt.Errorf("sample %d: got %d class probabilities", i, len(probs))
		}
		predicted := probs[positiveClass] >= screening.Threshold
		actual := test.Y[i] == positiveClass
		switch {
		case predicted && actual:
			e.TruePositives++
		case predicted && !actual:
			e.FalsePositives++
		case !predicted && actual:
			e.FalseNegatives++
		default:
			e.TrueNegatives++
		}
	}

	e.Samples = test.Len()
	e.Accuracy = ratio(e.TruePositives+e.TrueNegatives, e.Samples)
	e.Precision = ratio(e.TruePositives, e.TruePositives+e.FalsePositives)
	e.Recall = ratio(e.TruePositives, e.TruePositives+e.FalseNegatives)
	if e.Precision+e.Recall > 0 {
		e.F1 = 2 * e.Precision * e.Recall / (e.Precision + e.Recall)
	}
	return e, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
