package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/asdscreen/internal/adapters/http/api"
	service "github.com/okian/asdscreen/internal/app"
	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// mockModel returns a fixed distribution.
type mockModel struct {
	mu    sync.Mutex
	probs []float64
	err   error
}

func (m *mockModel) PredictProba(_ []float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probs, m.err
}

type panickingDeps struct{}

func (panickingDeps) Predict(context.Context, map[string]any) (screening.Result, error) {
	panic("scoring exploded")
}

func (panickingDeps) GetStats() map[string]interface{} { return map[string]interface{}{} }

const validBody = `{"A1":1,"A2":0,"A3":"1","A4":0,"A5":0,"A6":0,"A7":1,` +
	`"Age_Mons":24,"Sex":1,"Jaundice":0,"Family_mem_with_ASD":true}`

func quietLogger() logger.Logger {
	return logger.New(logger.WithOutput(io.Discard))
}

func newHandler(deps api.Dependencies, opts ...api.Option) http.Handler {
	opts = append([]api.Option{api.WithLogger(quietLogger())}, opts...)
	server := api.NewServer(deps, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return server.Handler(mux)
}

func newService(model *mockModel, opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithModel(model), service.WithLogger(quietLogger())}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields"`
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server backed by the screening service", t, func() {
		svc := newService(&mockModel{probs: []float64{0.266, 0.734}})
		defer svc.Stop()
		h := newHandler(svc)

		Convey("When requesting the root path", func() {
			w := serve(h, http.MethodGet, "/", "")

			Convey("Then it should answer with the liveness text", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(w.Body.String(), ShouldEqual, "ASD Screening Backend Running")
			})
		})

		Convey("When requesting an unknown path", func() {
			w := serve(h, http.MethodGet, "/nope", "")

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When posting to the root path", func() {
			w := serve(h, http.MethodPost, "/", "{}")

			Convey("Then the method should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When requesting the health endpoint", func() {
			serve(h, http.MethodGet, "/", "")
			w := serve(h, http.MethodGet, "/healthz", "")

			Convey("Then it should expose Prometheus metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "asdscreen_screening_model_trees")
				So(w.Body.String(), ShouldContainSubstring, `asdscreen_screening_http_requests_total{endpoint="root"`)
			})
		})

		Convey("When requesting stats", func() {
			w := serve(h, http.MethodGet, "/stats", "")

			Convey("Then it should return the service stats as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var stats map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
				So(stats["severityEnabled"], ShouldEqual, true)
			})
		})

		Convey("When posting to stats", func() {
			w := serve(h, http.MethodPost, "/stats", "{}")

			Convey("Then the method should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
			})
		})
	})
}

func TestServer_Predict(t *testing.T) {
	Convey("Given an API server with a working model", t, func() {
		svc := newService(&mockModel{probs: []float64{0.266, 0.734}})
		defer svc.Stop()
		h := newHandler(svc)

		Convey("When posting a valid payload", func() {
			w := serve(h, http.MethodPost, "/predict", validBody)

			Convey("Then it should return the screening result", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")

				var res screening.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Prediction, ShouldEqual, "ASD traits detected")
				So(res.Probability, ShouldEqual, 0.734)
				So(res.Severity, ShouldEqual, "Moderate ASD traits")
				So(res.KeyFactors, ShouldResemble, []string{
					"Does not respond to name (A1)",
					"Does not point to objects (A3)",
					"Limited use of gestures (A7)",
					"Family history of ASD",
				})
			})
		})

		Convey("When no key factor is triggered", func() {
			body := `{"A1":0,"A2":0,"A3":0,"A4":0,"A5":0,"A6":0,"A7":0,` +
				`"Age_Mons":30,"Sex":0,"Jaundice":1,"Family_mem_with_ASD":0}`
			w := serve(h, http.MethodPost, "/predict", body)

			Convey("Then key_factors should be an empty array, not null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"key_factors":[]`)
			})
		})

		Convey("When fields are missing or invalid", func() {
			w := serve(h, http.MethodPost, "/predict", `{"A1":1,"A2":"yes","A3":0}`)

			Convey("Then it should answer 400 and list every bad field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "bad_request")
				So(body.Fields, ShouldResemble, []string{
					"A2", "A4", "A5", "A6", "A7", "Age_Mons", "Sex", "Jaundice", "Family_mem_with_ASD",
				})
			})
		})

		Convey("When the body is not JSON", func() {
			w := serve(h, http.MethodPost, "/predict", `{"A1":`)

			Convey("Then it should answer 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "bad_request")
				So(body.Message, ShouldContainSubstring, "malformed JSON")
			})
		})

		Convey("When the body is empty, null or an array", func() {
			for _, b := range []string{"", "null", "[1,2]", `{"A1":1} {"A1":2}`} {
				w := serve(h, http.MethodPost, "/predict", b)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "bad_request")
			}
		})

		Convey("When the body is too large", func() {
			w := serve(h, http.MethodPost, "/predict", `{"pad":"`+strings.Repeat("x", 70<<10)+`"}`)

			Convey("Then it should answer 413", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decodeError(w).Code, ShouldEqual, "too_large")
			})
		})

		Convey("When using GET", func() {
			w := serve(h, http.MethodGet, "/predict", "")

			Convey("Then the method should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
			})
		})
	})

	Convey("Given an API server whose model fails", t, func() {
		svc := newService(&mockModel{err: errors.New("boom")})
		defer svc.Stop()
		h := newHandler(svc)

		w := serve(h, http.MethodPost, "/predict", validBody)

		Convey("Then it should answer 500 without leaking the cause", func() {
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			body := decodeError(w)
			So(body.Code, ShouldEqual, "internal_error")
			So(body.Message, ShouldNotContainSubstring, "boom")
		})
	})

	Convey("Given severity reporting is disabled", t, func() {
		svc := newService(&mockModel{probs: []float64{0.9, 0.1}}, service.WithSeverity(false))
		defer svc.Stop()
		h := newHandler(svc)

		w := serve(h, http.MethodPost, "/predict", validBody)

		Convey("Then the severity key should be omitted", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldNotContainSubstring, "severity")
			So(w.Body.String(), ShouldContainSubstring, `"prediction":"No ASD traits detected"`)
		})
	})
}

func TestServer_Middleware(t *testing.T) {
	Convey("Given an API server with restricted origins", t, func() {
		svc := newService(&mockModel{probs: []float64{0.5, 0.5}})
		defer svc.Stop()
		h := newHandler(svc, api.WithAllowedOrigins([]string{"https://app.example"}))

		Convey("When the client sends no request id", func() {
			w := serve(h, http.MethodGet, "/", "")

			Convey("Then one should be generated", func() {
				_, err := uuid.Parse(w.Header().Get(api.RequestIDHeader))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the client sends a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it should be echoed back", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			})
		})

		Convey("When an allowed origin sends a preflight", func() {
			req := httptest.NewRequest(http.MethodOptions, "/predict", http.NoBody)
			req.Header.Set("Origin", "https://app.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it should be answered with 204 and CORS headers", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example")
				So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, http.MethodPost)
				So(w.Header().Get("Access-Control-Allow-Headers"), ShouldEqual, "content-type")
			})
		})

		Convey("When another origin calls the API", func() {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validBody))
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then no CORS grant should be sent", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})

	Convey("Given an API server allowing any origin", t, func() {
		svc := newService(&mockModel{probs: []float64{0.5, 0.5}})
		defer svc.Stop()
		h := newHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Origin", "https://anywhere.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		Convey("Then the wildcard should be granted", func() {
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			So(w.Header().Get("Access-Control-Expose-Headers"), ShouldEqual, api.RequestIDHeader)
		})
	})

	Convey("Given a handler that panics", t, func() {
		h := newHandler(panickingDeps{})

		w := serve(h, http.MethodPost, "/predict", validBody)

		Convey("Then the panic should become a 500 JSON response", func() {
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w).Code, ShouldEqual, "internal_error")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})
	})
}

func TestChain(t *testing.T) {
	Convey("Given two middlewares", t, func() {
		var order []string
		mark := func(name string) api.Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		h := api.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}), mark("outer"), mark("inner"))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		Convey("Then the first should run outermost", func() {
			So(order, ShouldResemble, []string{"outer", "inner", "handler"})
		})
	})
}
