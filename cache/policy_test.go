package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/datahub/query"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func lagPolicy() Policy {
	return Policy{
		LagParams: []string{"start_date", "end_date"},
		LagWindow: 24 * time.Hour,
		Now:       func() time.Time { return fixedNow },
	}
}

func TestPolicy_Cacheable(t *testing.T) {
	p := lagPolicy()
	tests := []struct {
		name   string
		params query.Params
		want   bool
	}{
		{"one hour ago is inside the window", query.Params{"end_date": fixedNow.Add(-time.Hour).Format(query.DateLayout)}, false},
		{"two days ago is outside", query.Params{"end_date": fixedNow.Add(-48 * time.Hour).Format(query.DateLayout)}, true},
		{"exactly on the boundary", query.Params{"end_date": fixedNow.Add(-24 * time.Hour).Format(query.DateLayout)}, false},
		{"future date", query.Params{"end_date": fixedNow.Add(time.Hour).Format(query.DateLayout)}, false},
		{"absent lag params", query.Params{"rows": "5"}, true},
		{"empty lag value", query.Params{"end_date": ""}, true},
		{
			"any recent param disables",
			query.Params{"start_date": "2020-01-01", "end_date": fixedNow.Format(query.DateLayout)},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Cacheable(tt.params, fixedNow)
			if err != nil {
				t.Fatalf("Cacheable() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Cacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_NoLagParamsAlwaysCacheable(t *testing.T) {
	ok, err := Policy{}.Cacheable(query.Params{"end_date": "garbage"}, fixedNow)
	if err != nil || !ok {
		t.Fatalf("Cacheable() = %v, %v", ok, err)
	}
}

func TestPolicy_UnparsableLagValue(t *testing.T) {
	_, err := lagPolicy().Cacheable(query.Params{"end_date": "last tuesday"}, fixedNow)
	if !errors.Is(err, ErrLagValue) {
		t.Fatalf("error = %v, want ErrLagValue", err)
	}
}

func TestPolicy_Decide(t *testing.T) {
	old := query.Params{"end_date": "2020-01-01"}
	recent := query.Params{"end_date": fixedNow.Format(query.DateLayout)}

	tests := []struct {
		name   string
		opts   query.Options
		params query.Params
		want   Decision
	}{
		{"default", query.Options{}, old, Decision{Read: true, Write: true}},
		{"force refresh", query.Options{ForceRefresh: true}, old, Decision{Write: true}},
		{"bypass", query.Options{BypassCache: true}, old, Decision{}},
		{"bypass and force", query.Options{BypassCache: true, ForceRefresh: true}, old, Decision{Write: true}},
		{"inside lag window", query.Options{}, recent, Decision{}},
		{"force inside lag window", query.Options{ForceRefresh: true}, recent, Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lagPolicy().Decide(tt.opts, tt.params)
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicy_BypassSkipsLagParsing(t *testing.T) {
	d, err := lagPolicy().Decide(query.Options{BypassCache: true}, query.Params{"end_date": "garbage"})
	if err != nil || d.Enabled() {
		t.Fatalf("Decide() = %+v, %v", d, err)
	}
}
