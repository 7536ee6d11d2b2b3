package smoke_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/asdscreen/internal/adapters/http/api"
	service "github.com/okian/asdscreen/internal/app"
	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/internal/smoke"
	"github.com/okian/asdscreen/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// ageModel scores by the age feature so probabilities vary across payloads.
type ageModel struct{}

func (ageModel) PredictProba(x []float64) ([]float64, error) {
	p := (x[7] - 12) / 24
	return []float64{1 - p, p}, nil
}

func quietLogger() logger.Logger {
	return logger.New(logger.WithOutput(io.Discard))
}

func newScreeningServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(service.WithModel(ageModel{}), service.WithLogger(quietLogger()))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)

	server := api.NewServer(svc, api.WithLogger(quietLogger()))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	ts := httptest.NewServer(server.Handler(mux))
	t.Cleanup(ts.Close)
	return ts
}

func smokeConfig(url string) *smoke.Config {
	return &smoke.Config{
		BaseURL:  url,
		Requests: 60,
		Workers:  4,
		Seed:     7,
		Timeout:  5 * time.Second,
	}
}

func TestGenerateCases(t *testing.T) {
	Convey("Given a seed", t, func() {
		a := smoke.GenerateCases(11, 50)
		b := smoke.GenerateCases(11, 50)

		Convey("Then generation should be deterministic", func() {
			So(a, ShouldResemble, b)
			So(smoke.GenerateCases(12, 50), ShouldNotResemble, a)
		})

		Convey("And every payload should parse back to its record", func() {
			for _, c := range a {
				in, err := screening.ParseInput(c.Payload)
				So(err, ShouldBeNil)
				So(in, ShouldResemble, c.Input)
				So(c.Input.AgeMons, ShouldBeBetweenOrEqual, 12, 36)
			}
		})

		Convey("And dropping a field should leave the original intact", func() {
			p := smoke.WithoutField(a[0].Payload, screening.FieldSex)
			So(p, ShouldNotContainKey, screening.FieldSex)
			So(a[0].Payload, ShouldContainKey, screening.FieldSex)
			So(len(p), ShouldEqual, screening.FeatureCount-1)
		})
	})
}

func TestVerifyResult(t *testing.T) {
	Convey("Given a record with two triggered factors", t, func() {
		in := screening.Input{A1: 1, FamilyMemWithASD: 1, AgeMons: 20}
		good := screening.Result{
			Prediction:  screening.LabelPositive,
			Probability: 0.72,
			Severity:    screening.SeverityModerate,
			KeyFactors:  []string{"Does not respond to name (A1)", "Family history of ASD"},
		}

		Convey("Then a consistent result should pass", func() {
			So(smoke.VerifyResult(in, good), ShouldBeNil)
			good.Severity = ""
			So(smoke.VerifyResult(in, good), ShouldBeNil)
		})

		Convey("Then each broken invariant should be caught", func() {
			bad := good
			bad.Probability = 1.2
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)

			bad = good
			bad.Probability = 0.7215
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)

			bad = good
			bad.Prediction = screening.LabelNegative
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)

			bad = good
			bad.Severity = screening.SeveritySevere
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)

			bad = good
			bad.KeyFactors = []string{"Family history of ASD"}
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)

			bad = good
			bad.KeyFactors = nil
			So(smoke.VerifyResult(in, bad), ShouldNotBeNil)
		})
	})
}

func TestVerifyRejection(t *testing.T) {
	Convey("Given rejection responses", t, func() {
		body, _ := json.Marshal(map[string]any{"code": "bad_request", "message": "x", "fields": []string{"A3"}})

		So(smoke.VerifyRejection(http.StatusBadRequest, body, "A3"), ShouldBeNil)
		So(smoke.VerifyRejection(http.StatusOK, body, "A3"), ShouldNotBeNil)
		So(smoke.VerifyRejection(http.StatusBadRequest, body, "A4"), ShouldNotBeNil)
		So(smoke.VerifyRejection(http.StatusBadRequest, []byte("oops"), "A3"), ShouldNotBeNil)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running screening service", t, func() {
		ts := newScreeningServer(t)

		Convey("When the smoke run completes", func() {
			stats, err := smoke.Run(context.Background(), smokeConfig(ts.URL), quietLogger())

			Convey("Then every check should pass", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 60)
				So(stats.Submitted, ShouldEqual, 60+screening.FeatureCount)
				So(stats.Passed, ShouldEqual, stats.Submitted)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Rejections, ShouldEqual, screening.FeatureCount)
				So(stats.Positive+stats.Negative, ShouldEqual, 60)
			})
		})
	})

	Convey("Given a service that mislabels its results", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				_, _ = w.Write([]byte("ASD Screening Backend Running"))
				return
			}
			w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))
			_ = json.NewEncoder(w).Encode(screening.Result{
				Prediction:  screening.LabelNegative,
				Probability: 0.9,
				KeyFactors:  []string{},
			})
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()

		stats, err := smoke.Run(context.Background(), smokeConfig(ts.URL), quietLogger())

		Convey("Then the run should fail verification", func() {
			So(errors.Is(err, smoke.ErrVerification), ShouldBeTrue)
			So(stats.Failed, ShouldEqual, stats.Submitted)
		})
	})

	Convey("Given nothing is listening", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		_, err := smoke.Run(context.Background(), smokeConfig(url), quietLogger())

		Convey("Then the liveness check should fail", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "liveness")
		})
	})
}
