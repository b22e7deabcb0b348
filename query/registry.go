package query

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Func is the signature every query implements. params holds bound values
// only; reserved parameters have been stripped.
type Func func(ctx context.Context, params Params) (Result, error)

// Identity addresses a query within the deployment.
type Identity struct {
	Module string
	Name   string
}

func (id Identity) String() string {
	return id.Module + "?qid=" + id.Name
}

// Module groups queries under a path such as "example/example".
type Module struct {
	Path string
	Doc  string

	// CacheRoot is the cache directory declared by the module. Empty means
	// the module's queries are not cached and fast-cache lookups fail.
	CacheRoot string
}

// Stem is the last path element; cache entries live under <CacheRoot>/<Stem>.
func (m Module) Stem() string {
	return path.Base(m.Path)
}

// Query pairs a Spec with its implementation.
type Query struct {
	Spec Spec
	Func Func
}

// Call binds args and named parameters, then invokes the query.
func (q Query) Call(ctx context.Context, args []string, named Params) (Result, error) {
	params, err := q.Spec.Bind(args, named)
	if err != nil {
		return Result{}, err
	}
	return q.Func(ctx, params)
}

type moduleEntry struct {
	module  Module
	queries map[string]Query
}

// Registry maps module paths and query names to queries.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Registration normally happens once at startup; lookups are read-only.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*moduleEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*moduleEntry)}
}

// CleanPath normalizes a module path: no surrounding slashes or spaces.
func CleanPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

// AddModule registers a module. Re-adding a path replaces its metadata and
// keeps its queries.
func (r *Registry) AddModule(m Module) error {
	m.Path = CleanPath(m.Path)
	if m.Path == "" || strings.HasPrefix(path.Base(m.Path), "_") {
		return fmt.Errorf("%w: module path %q", ErrInvalidName, m.Path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.modules[m.Path]; ok {
		e.module = m
		return nil
	}
	r.modules[m.Path] = &moduleEntry{module: m, queries: make(map[string]Query)}
	return nil
}

// Register adds a query to an existing module. Names beginning with "_" are
// reserved and rejected.
func (r *Registry) Register(module string, q Query) error {
	module = CleanPath(module)
	name := strings.TrimSpace(q.Spec.Name)
	if name == "" || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: query %q", ErrInvalidName, q.Spec.Name)
	}
	if q.Func == nil {
		return fmt.Errorf("%w: %s", ErrNilFunc, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.modules[module]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModuleNotFound, module)
	}
	if _, exists := e.queries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateQuery, Identity{Module: module, Name: name})
	}
	q.Spec.Name = name
	e.queries[name] = q
	return nil
}

// Module returns the module registered under p.
func (r *Registry) Module(p string) (Module, error) {
	p = CleanPath(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.modules[p]
	if !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrModuleNotFound, p)
	}
	return e.module, nil
}

// Lookup resolves a query by module path and name.
func (r *Registry) Lookup(module, name string) (Query, error) {
	module = CleanPath(module)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.modules[module]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrModuleNotFound, module)
	}
	q, ok := e.queries[name]
	if !ok {
		return Query{}, fmt.Errorf("%w: %s", ErrQueryNotFound, Identity{Module: module, Name: name})
	}
	return q, nil
}

// Modules returns all modules sorted by path.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mods := make([]Module, 0, len(r.modules))
	for _, e := range r.modules {
		mods = append(mods, e.module)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	return mods
}

// Queries returns the module's queries sorted by name.
func (r *Registry) Queries(module string) ([]Query, error) {
	module = CleanPath(module)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, module)
	}
	qs := make([]Query, 0, len(e.queries))
	for _, q := range e.queries {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Spec.Name < qs[j].Spec.Name })
	return qs, nil
}
