package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
)

const (
	rootMessage     = "ASD Screening Backend Running"
	quietFailureCap = 5
)

// Run checks liveness, submits generated payloads concurrently, probes every
// missing field and returns the statistics. It returns ErrVerification when
// any check failed.
func Run(ctx context.Context, cfg *Config, l logger.Logger) (*Stats, error) {
	if l == nil {
		l = logger.Get()
	}
	if cfg.Requests < 0 || cfg.Workers < 1 {
		return nil, fmt.Errorf("requests must be >= 0 and workers >= 1")
	}
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.Timeout)
	base := strings.TrimRight(cfg.BaseURL, "/")

	l.Info(ctx, "starting screening smoke run",
		logger.String("baseURL", base),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	if err := checkLiveness(ctx, client, base); err != nil {
		return stats, fmt.Errorf("service liveness check failed: %w", err)
	}

	cases := GenerateCases(cfg.Seed, cfg.Requests)
	stats.Generated = len(cases)

	var reported atomic.Int64
	report := func(msg string, fields ...logger.Field) {
		if cfg.Verbose || reported.Add(1) <= quietFailureCap {
			l.Warn(ctx, msg, fields...)
		}
	}

	submitCases(ctx, cfg, client, base+"/predict", cases, stats, report)
	probeMissingFields(ctx, client, base+"/predict", cases, stats, report)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, l, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%w: %d of %d checks failed", ErrVerification, stats.Failed, stats.Submitted)
	}
	return stats, nil
}

func checkLiveness(ctx context.Context, client *httpClient, base string) error {
	resp, err := client.get(ctx, base+"/")
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("GET / returned status %d", resp.Status)
	}
	if got := strings.TrimSpace(string(resp.Body)); got != rootMessage {
		return fmt.Errorf("GET / returned %q", got)
	}
	return nil
}

// submitCases posts cases through a worker pool and verifies each result.
func submitCases(
	ctx context.Context, cfg *Config, client *httpClient, url string,
	cases []Case, stats *Stats, report func(string, ...logger.Field),
) {
	var submitted, passed, failed, positive, negative atomic.Int64

	caseChan := make(chan Case, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range caseChan {
				submitted.Add(1)
				res, err := submitCase(ctx, client, url, c)
				if err != nil {
					failed.Add(1)
					report("screening check failed", logger.Any("payload", c.Payload), logger.Error(err))
					continue
				}
				passed.Add(1)
				if res.Prediction == screening.LabelPositive {
					positive.Add(1)
				} else {
					negative.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(caseChan)
		for _, c := range cases {
			select {
			case <-ctx.Done():
				return
			case caseChan <- c:
			}
		}
	}()
	wg.Wait()

	stats.Submitted += int(submitted.Load())
	stats.Passed += int(passed.Load())
	stats.Failed += int(failed.Load())
	stats.Positive = int(positive.Load())
	stats.Negative = int(negative.Load())
}

func submitCase(ctx context.Context, client *httpClient, url string, c Case) (screening.Result, error) {
	resp, err := client.postJSON(ctx, url, c.Payload)
	if err != nil {
		return screening.Result{}, err
	}
	if resp.Status != http.StatusOK {
		return screening.Result{}, fmt.Errorf("status %d: %s", resp.Status, strings.TrimSpace(string(resp.Body)))
	}
	var res screening.Result
	if err := json.Unmarshal(resp.Body, &res); err != nil {
		return screening.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, VerifyResult(c.Input, res)
}

// probeMissingFields drops each feature from one valid payload in turn and
// expects a 400 naming exactly that feature.
func probeMissingFields(
	ctx context.Context, client *httpClient, url string,
	cases []Case, stats *Stats, report func(string, ...logger.Field),
) {
	base := GenerateCases(0, 1)[0].Payload
	if len(cases) > 0 {
		base = cases[0].Payload
	}
	for _, name := range screening.FeatureNames {
		if ctx.Err() != nil {
			return
		}
		stats.Submitted++
		resp, err := client.postJSON(ctx, url, WithoutField(base, name))
		if err == nil {
			err = VerifyRejection(resp.Status, resp.Body, name)
		}
		if err != nil {
			stats.Failed++
			report("missing-field probe failed", logger.String("field", name), logger.Error(err))
			continue
		}
		stats.Passed++
		stats.Rejections++
	}
}

func logFinalStats(ctx context.Context, l logger.Logger, stats *Stats) {
	var successRate, requestsPerSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Passed) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	l.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Int("positive", stats.Positive),
		logger.Int("negative", stats.Negative),
		logger.Int("rejections", stats.Rejections),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond),
	)
}
