package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/datahub/resilience"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestStatus_Ready(t *testing.T) {
	if !StatusHealthy.Ready() || !StatusDegraded.Ready() || StatusUnhealthy.Ready() {
		t.Error("only unhealthy should refuse queries")
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		if got := Overall(tt.results); got != tt.want {
			t.Errorf("%s: Overall() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAggregator_RegisterAndCheck(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("b", Healthy("ok")))
	agg.Register(fixed("a", Degraded("slow")))
	agg.Register(fixed("b", Unhealthy("replaced", nil)))

	if got := agg.CheckerNames(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("CheckerNames() = %v, want [b a]", got)
	}

	r, err := agg.Check(context.Background(), "b")
	if err != nil || r.Status != StatusUnhealthy {
		t.Errorf("Check(b) = %+v, %v", r, err)
	}
	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(missing) error = %v", err)
	}

	results := agg.CheckAll(context.Background())
	if len(results) != 2 || results["a"].Status != StatusDegraded {
		t.Errorf("CheckAll() = %+v", results)
	}
	if results["a"].Duration <= 0 && results["a"].Timestamp.IsZero() {
		t.Error("results are missing timing")
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("stuck", func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("late")
	}))

	start := time.Now()
	r := agg.CheckAll(context.Background())["stuck"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want timeout", r)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("CheckAll waited for the stuck checker")
	}
}

func TestCacheRootChecker(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "not", "yet", "created")

	r := NewCacheRootChecker(dir, nested, dir, "").Check(context.Background())
	if r.Status != StatusHealthy {
		t.Fatalf("Check() = %+v", r)
	}
	if len(r.Details) != 2 {
		t.Errorf("details = %v, want two roots", r.Details)
	}
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("missing root was not created: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "not" {
			t.Errorf("probe file left behind: %s", e.Name())
		}
	}
}

func TestCacheRootChecker_Unwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain-file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewCacheRootChecker(filepath.Join(file, "sub")).Check(context.Background())
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckFailed) {
		t.Errorf("Check() = %+v, want unhealthy", r)
	}
}

func TestCacheRootChecker_NoRoots(t *testing.T) {
	if r := NewCacheRootChecker().Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("Check() = %+v", r)
	}
}

func TestWorkerChecker(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip(err)
	}
	if r := NewWorkerChecker(exe).Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("Check(%s) = %+v", exe, r)
	}
	if r := NewWorkerChecker("/nonexistent/datahub").Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("Check(missing) = %+v", r)
	}
}

func TestCapacityChecker(t *testing.T) {
	b := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 1})
	c := NewCapacityChecker(b)
	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("idle Check() = %+v", r)
	}
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer b.Release()
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("busy Check() = %+v", r)
	}
}

func TestHTTPHandlers(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		path     string
		wantCode int
		wantBody string
	}{
		{"liveness ignores checks", Unhealthy("down", nil), "/healthz", http.StatusOK, "OK"},
		{"ready", Healthy("ok"), "/readyz", http.StatusOK, "OK"},
		{"degraded is ready", Degraded("slow"), "/readyz", http.StatusOK, "DEGRADED"},
		{"not ready", Unhealthy("down", nil), "/readyz", http.StatusServiceUnavailable, "UNHEALTHY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(AggregatorConfig{})
			agg.Register(fixed("disk", tt.result))
			r := chi.NewRouter()
			Mount(r, agg)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode || rec.Body.String() != tt.wantBody {
				t.Errorf("GET %s = %d %q, want %d %q", tt.path, rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("disk", Healthy("fine").WithDetails(map[string]any{"root": "/tmp"})))
	agg.Register(fixed("worker", Unhealthy("missing", ErrCheckFailed)))
	r := chi.NewRouter()
	Mount(r, agg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "unhealthy" || resp.Checks["disk"].Details["root"] != "/tmp" || resp.Checks["worker"].Error == "" {
		t.Errorf("response = %+v", resp)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/disk", nil))
	var single CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &single); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || single.Message != "fine" {
		t.Errorf("GET /health/disk = %d %+v", rec.Code, single)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /health/nope = %d", rec.Code)
	}
}
