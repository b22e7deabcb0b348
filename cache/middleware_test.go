package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/datahub/frame"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/query"
)

// memStore is an in-memory Store that counts operations.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
	failGet error
	failSet error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, path string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet != nil {
		return nil, false, s.failGet
	}
	v, ok := s.entries[path]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, path string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.failSet != nil {
		return s.failSet
	}
	s.entries[path] = append([]byte(nil), payload...)
	return nil
}

func (s *memStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
	return nil
}

// counter is a query function that counts invocations and stamps each result
// with its call number.
type counter struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (c *counter) fn(_ context.Context, p query.Params) (query.Result, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return query.Result{}, c.err
	}
	return query.FrameResult(frame.MustNew(
		frame.Ints("call", int64(n)),
		frame.Strings("rows", p["rows"]),
	)), nil
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var rowsSpec = query.Spec{
	Name:   "random_data",
	Params: []query.Param{query.String("rows").WithDefault("10"), query.String("cols").WithDefault("1")},
}

func newTestMemoizer(t *testing.T, store Store, policy Policy, opts ...Option) *Memoizer {
	t.Helper()
	m, err := NewMemoizer(store, Config{Root: "/cache", Stem: "example", Policy: policy}, opts...)
	if err != nil {
		t.Fatalf("NewMemoizer() error = %v", err)
	}
	return m
}

func callNumber(t *testing.T, res query.Result) int64 {
	t.Helper()
	f, err := res.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	col, ok := f.Column("call")
	if !ok {
		t.Fatal("result has no call column")
	}
	return col.Ints[0]
}

func TestMemoizer_MissThenHit(t *testing.T) {
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)
	ctx := context.Background()

	first, err := fn(ctx, query.Params{"rows": "5"})
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	if c.count() != 1 || store.sets != 1 {
		t.Fatalf("after miss: calls=%d sets=%d, want 1 and 1", c.count(), store.sets)
	}

	second, err := fn(ctx, query.Params{"rows": "5"})
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if c.count() != 1 {
		t.Errorf("function invoked again on hit: calls=%d", c.count())
	}
	if store.gets != 2 {
		t.Errorf("gets = %d, want 2", store.gets)
	}

	a, _ := first.Bytes()
	b, _ := second.Bytes()
	if !bytes.Equal(a, b) {
		t.Error("hit payload differs from the payload written on miss")
	}
	if !second.IsEncoded() {
		t.Error("hit should pass the stored payload through")
	}
}

func TestMemoizer_DefaultsShareEntry(t *testing.T) {
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)
	ctx := context.Background()

	_, _ = fn(ctx, query.Params{})
	_, _ = fn(ctx, query.Params{"rows": "10", "cols": "1"})

	if c.count() != 1 {
		t.Errorf("calls = %d, want defaulted and explicit calls to share one entry", c.count())
	}
}

func TestMemoizer_ForceRefreshOverwrites(t *testing.T) {
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)
	ctx := context.Background()

	_, _ = fn(ctx, query.Params{"rows": "5"})
	res, err := fn(ctx, query.Params{"rows": "5", "force-refresh": ""})
	if err != nil {
		t.Fatalf("force-refresh error = %v", err)
	}
	if c.count() != 2 || callNumber(t, res) != 2 {
		t.Fatalf("force-refresh did not recompute: calls=%d", c.count())
	}

	res, _ = fn(ctx, query.Params{"rows": "5"})
	if c.count() != 2 || callNumber(t, res) != 2 {
		t.Errorf("subsequent read did not see the refreshed entry")
	}
}

func TestMemoizer_BypassSkipsCache(t *testing.T) {
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := fn(ctx, query.Params{"rows": "5", "nocache": "1"}); err != nil {
			t.Fatal(err)
		}
	}
	if c.count() != 2 || store.gets != 0 || store.sets != 0 {
		t.Errorf("calls=%d gets=%d sets=%d, want 2 0 0", c.count(), store.gets, store.sets)
	}
}

func TestMemoizer_BypassWithForceStillWrites(t *testing.T) {
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)
	ctx := query.WithOptions(context.Background(), query.Options{BypassCache: true, ForceRefresh: true})

	if _, err := fn(ctx, query.Params{"rows": "5"}); err != nil {
		t.Fatal(err)
	}
	if store.gets != 0 || store.sets != 1 {
		t.Errorf("gets=%d sets=%d, want 0 1", store.gets, store.sets)
	}
}

func TestMemoizer_LagWindowSkipsCache(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	spec := query.Spec{Name: "random_data_date", Params: []query.Param{query.Date("start_date"), query.Date("end_date")}}
	policy := Policy{
		LagParams: []string{"start_date", "end_date"},
		LagWindow: 31 * time.Hour,
		Now:       func() time.Time { return now },
	}
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, policy).Wrap(spec, c.fn)
	ctx := context.Background()

	recent := query.Params{"start_date": "2024-06-09", "end_date": "2024-06-10"}
	_, _ = fn(ctx, recent)
	_, _ = fn(ctx, recent)
	if c.count() != 2 || store.sets != 0 {
		t.Errorf("recent window: calls=%d sets=%d, want 2 0", c.count(), store.sets)
	}

	old := query.Params{"start_date": "2024-01-01", "end_date": "2024-01-02"}
	_, _ = fn(ctx, old)
	_, _ = fn(ctx, old)
	if c.count() != 3 || store.sets != 1 {
		t.Errorf("old window: calls=%d sets=%d, want 3 1", c.count(), store.sets)
	}
}

func TestMemoizer_FailingStoreReturnsLiveValue(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("disk on fire")
	store.failSet = errors.New("disk on fire")
	c := &counter{}
	var logs bytes.Buffer
	fn := newTestMemoizer(t, store, Policy{}, WithLogger(observe.NewLoggerWithWriter("info", &logs))).Wrap(rowsSpec, c.fn)

	res, err := fn(context.Background(), query.Params{"rows": "5"})
	if err != nil {
		t.Fatalf("error = %v, want live result", err)
	}
	if callNumber(t, res) != 1 {
		t.Error("unexpected result")
	}
	if !strings.Contains(logs.String(), "cache write failed") || !strings.Contains(logs.String(), "cache read failed") {
		t.Errorf("cache failures not logged: %s", logs.String())
	}
}

func TestMemoizer_CorruptEntryIsOverwritten(t *testing.T) {
	store := newMemStore()
	m := newTestMemoizer(t, store, Policy{})
	c := &counter{}
	fn := m.Wrap(rowsSpec, c.fn)

	bound, _ := rowsSpec.Bind(nil, query.Params{"rows": "5"})
	path := m.Path(rowsSpec.Name, bound)
	store.entries[path] = []byte("not a frame")

	if _, err := fn(context.Background(), query.Params{"rows": "5"}); err != nil {
		t.Fatal(err)
	}
	if c.count() != 1 {
		t.Fatalf("calls = %d, want recompute on corrupt entry", c.count())
	}
	if _, err := frame.Decode(store.entries[path]); err != nil {
		t.Errorf("entry still corrupt after recompute: %v", err)
	}
}

func TestMemoizer_ErrorsAreNotCached(t *testing.T) {
	store := newMemStore()
	boom := errors.New("upstream down")
	c := &counter{err: boom}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)

	for i := 0; i < 2; i++ {
		if _, err := fn(context.Background(), query.Params{}); !errors.Is(err, boom) {
			t.Fatalf("error = %v, want %v", err, boom)
		}
	}
	if c.count() != 2 || store.sets != 0 {
		t.Errorf("calls=%d sets=%d, want 2 0", c.count(), store.sets)
	}
}

func TestMemoizer_BindErrorsReturned(t *testing.T) {
	c := &counter{}
	fn := newTestMemoizer(t, newMemStore(), Policy{}).Wrap(rowsSpec, c.fn)

	if _, err := fn(context.Background(), query.Params{"bogus": "1"}); !errors.Is(err, query.ErrUnknownParam) {
		t.Fatalf("error = %v, want ErrUnknownParam", err)
	}
	if c.count() != 0 {
		t.Error("function invoked despite bind error")
	}
}

func TestMemoizer_UnparsableLagFallsBackToLive(t *testing.T) {
	spec := query.Spec{Name: "q", Params: []query.Param{query.String("end_date")}}
	store := newMemStore()
	c := &counter{}
	fn := newTestMemoizer(t, store, Policy{LagParams: []string{"end_date"}, LagWindow: time.Hour}).Wrap(spec, c.fn)

	if _, err := fn(context.Background(), query.Params{"end_date": "soon"}); err != nil {
		t.Fatalf("error = %v, want live result", err)
	}
	if store.gets != 0 || store.sets != 0 {
		t.Errorf("gets=%d sets=%d, want cache untouched", store.gets, store.sets)
	}
}

func TestMemoizer_ConcurrentMissesCoalesce(t *testing.T) {
	store := newMemStore()
	c := &counter{delay: 100 * time.Millisecond}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, c.fn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fn(context.Background(), query.Params{"rows": "5"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := c.count(); got != 1 {
		t.Errorf("calls = %d, want concurrent misses to share one invocation", got)
	}
}

func TestMemoizer_CancelledLeaderDoesNotFailFollower(t *testing.T) {
	store := newMemStore()
	entered := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	slow := func(ctx context.Context, p query.Params) (query.Result, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-ctx.Done()
			return query.Result{}, ctx.Err()
		}
		return query.FrameResult(frame.MustNew(frame.Ints("call", int64(n)))), nil
	}
	fn := newTestMemoizer(t, store, Policy{}).Wrap(rowsSpec, slow)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := fn(leaderCtx, query.Params{"rows": "5"})
		leaderErr <- err
	}()
	<-entered

	type outcome struct {
		res query.Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := fn(context.Background(), query.Params{"rows": "5"})
		follower <- outcome{res, err}
	}()
	// Wait for the follower's cache miss so it joins the shared call.
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		gets := store.gets
		store.mu.Unlock()
		if gets >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower error = %v, want the query result", got.err)
	}
	if n := callNumber(t, got.res); n != 2 {
		t.Errorf("follower result from call %d, want 2", n)
	}
	if store.sets != 1 {
		t.Errorf("sets = %d, want the follower's result written", store.sets)
	}
}

func TestMemoizer_CallerCancelWhileWaiting(t *testing.T) {
	c := &counter{delay: 200 * time.Millisecond}
	fn := newTestMemoizer(t, newMemStore(), Policy{}).Wrap(rowsSpec, c.fn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := fn(ctx, query.Params{"rows": "5"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Error("caller waited for the shared call after its own deadline")
	}
}

func TestMemoizer_DiskStoreEndToEnd(t *testing.T) {
	root := t.TempDir()
	m, err := NewMemoizer(NewDiskStore(), Config{Root: root, Stem: "example"})
	if err != nil {
		t.Fatal(err)
	}
	c := &counter{}
	fn := m.Wrap(rowsSpec, c.fn)

	_, _ = fn(context.Background(), query.Params{"rows": "5", "cols": "1"})
	_, _ = fn(context.Background(), query.Params{"cols": "1", "rows": "5"})

	if c.count() != 1 {
		t.Errorf("calls = %d, want 1", c.count())
	}
	want := filepath.Join(root, "example", "random_data_cols=1_rows=5.cbor.gz")
	if got := m.Path(rowsSpec.Name, query.Params{"rows": "5", "cols": "1"}); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestNewMemoizer_Validation(t *testing.T) {
	if _, err := NewMemoizer(nil, Config{Root: "/x"}); !errors.Is(err, ErrNilStore) {
		t.Errorf("nil store error = %v", err)
	}
	if _, err := NewMemoizer(newMemStore(), Config{}); !errors.Is(err, ErrNoRoot) {
		t.Errorf("empty root error = %v", err)
	}
}
