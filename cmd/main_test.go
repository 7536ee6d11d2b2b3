package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	service "github.com/okian/asdscreen/internal/app"
	"github.com/okian/asdscreen/internal/config"
	"github.com/okian/asdscreen/internal/domain/forest"
	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func quietLogger() logger.Logger {
	return logger.New(logger.WithOutput(io.Discard))
}

// writeArtifact fits a tiny forest on the screening features and saves it.
func writeArtifact(t *testing.T) string {
	t.Helper()
	x := make([][]float64, 0, 20)
	y := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		row := make([]float64, screening.FeatureCount)
		label := i % 2
		for a := 0; a < 7; a++ {
			row[a] = float64(label)
		}
		row[7] = float64(12 + i)
		x = append(x, row)
		y = append(y, label)
	}
	f := forest.New(forest.WithTrees(3), forest.WithFeatureNames(screening.FeatureNames))
	if err := f.Fit(context.Background(), x, y); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rf_model.json")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given configuration from the environment and a trained artifact", t, func() {
		modelPath := writeArtifact(t)
		_ = os.Setenv("ASDSCREEN_ADDR", ":8080")
		_ = os.Setenv("ASDSCREEN_MODEL_PATH", modelPath)
		_ = os.Setenv("ASDSCREEN_ALLOWED_ORIGINS", "https://app.example")
		defer func() {
			_ = os.Unsetenv("ASDSCREEN_ADDR")
			_ = os.Unsetenv("ASDSCREEN_MODEL_PATH")
			_ = os.Unsetenv("ASDSCREEN_ALLOWED_ORIGINS")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc := service.New(
			service.WithLogger(quietLogger()),
			service.WithModelPath(cfg.ModelPath),
			service.WithSeverity(cfg.SeverityEnabled),
			service.WithCacheSize(cfg.CacheSize),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := newHTTPServer(ctx, cfg, svc, quietLogger())

		convey.Convey("Then the server should carry the configured address and timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, ":8080")
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
		})

		convey.Convey("And every route should be reachable through the handler", func() {
			for path, want := range map[string]int{
				"/":             http.StatusOK,
				"/healthz":      http.StatusOK,
				"/stats":        http.StatusOK,
				"/openapi.yaml": http.StatusOK,
				"/api-docs":     http.StatusOK,
				"/missing":      http.StatusNotFound,
			} {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, want)
			}
		})

		convey.Convey("And predictions should be served with CORS for the allowed origin", func() {
			body := `{"A1":1,"A2":1,"A3":1,"A4":1,"A5":1,"A6":1,"A7":1,` +
				`"Age_Mons":20,"Sex":1,"Jaundice":0,"Family_mem_with_ASD":1}`
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
			req.Header.Set("Origin", "https://app.example")
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://app.example")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"prediction":"ASD traits detected"`)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the address is configured empty", func() {
			_ = os.Setenv("ASDSCREEN_ADDR", "")
			defer func() { _ = os.Unsetenv("ASDSCREEN_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the model artifact is missing", func() {
			svc := service.New(
				service.WithLogger(quietLogger()),
				service.WithModelPath(filepath.Join(t.TempDir(), "absent.json")),
			)

			convey.Convey("Then the service should refuse to start", func() {
				err := svc.Start(context.Background())
				convey.So(errors.Is(err, service.ErrModelUnavailable), convey.ShouldBeTrue)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx, 10*time.Millisecond)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When updating system metrics directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
