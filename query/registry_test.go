package query

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/datahub/frame"
)

func constQuery(name string) Query {
	return Query{
		Spec: Spec{Name: name, Params: []Param{String("n").WithDefault("1")}},
		Func: func(_ context.Context, p Params) (Result, error) {
			return FrameResult(frame.MustNew(frame.Strings("n", p["n"]))), nil
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.AddModule(Module{Path: "/example/example/", CacheRoot: "/tmp"}); err != nil {
		t.Fatalf("AddModule() error = %v", err)
	}
	if err := r.Register("example/example", constQuery("b")); err != nil {
		t.Fatalf("Register(b) error = %v", err)
	}
	if err := r.Register("example/example", constQuery("a")); err != nil {
		t.Fatalf("Register(a) error = %v", err)
	}

	m, err := r.Module("example/example")
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}
	if m.Path != "example/example" || m.Stem() != "example" {
		t.Errorf("module = %+v, stem = %q", m, m.Stem())
	}

	qs, err := r.Queries("example/example")
	if err != nil {
		t.Fatalf("Queries() error = %v", err)
	}
	if len(qs) != 2 || qs[0].Spec.Name != "a" || qs[1].Spec.Name != "b" {
		t.Fatalf("Queries() not sorted: %v", qs)
	}

	q, err := r.Lookup("example/example", "a")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	res, err := q.Call(context.Background(), []string{"7"}, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	f, err := res.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	col, ok := f.Column("n")
	if !ok || col.Strings[0] != "7" {
		t.Errorf("column n = %+v, want [7]", col)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	if err := r.AddModule(Module{Path: ""}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("AddModule(empty) error = %v", err)
	}
	if err := r.AddModule(Module{Path: "pkg/_private"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("AddModule(_private) error = %v", err)
	}
	if err := r.Register("missing", constQuery("a")); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Register(missing module) error = %v", err)
	}

	_ = r.AddModule(Module{Path: "m"})
	if err := r.Register("m", constQuery("_hidden")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Register(_hidden) error = %v", err)
	}
	if err := r.Register("m", Query{Spec: Spec{Name: "nil"}}); !errors.Is(err, ErrNilFunc) {
		t.Errorf("Register(nil func) error = %v", err)
	}
	_ = r.Register("m", constQuery("a"))
	if err := r.Register("m", constQuery("a")); !errors.Is(err, ErrDuplicateQuery) {
		t.Errorf("Register(dup) error = %v", err)
	}

	if _, err := r.Lookup("m", "zzz"); !errors.Is(err, ErrQueryNotFound) || !IsNotFound(err) {
		t.Errorf("Lookup(unknown query) error = %v", err)
	}
	if _, err := r.Lookup("nope", "a"); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Lookup(unknown module) error = %v", err)
	}
}

func TestRegistry_ModulesSorted(t *testing.T) {
	r := NewRegistry()
	for _, p := range []string{"z/one", "a/two", "m/three"} {
		if err := r.AddModule(Module{Path: p}); err != nil {
			t.Fatal(err)
		}
	}
	mods := r.Modules()
	if len(mods) != 3 || mods[0].Path != "a/two" || mods[2].Path != "z/one" {
		t.Fatalf("Modules() = %v", mods)
	}
}

func TestResult_LazyConversion(t *testing.T) {
	f := frame.MustNew(frame.Ints("x", 1, 2))
	payload, err := FrameResult(f).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	got, err := EncodedResult(payload).Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if !got.Equal(f) {
		t.Fatal("decoded frame differs")
	}
	if _, err := (Result{}).Bytes(); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("empty Bytes() error = %v", err)
	}
}
