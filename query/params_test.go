package query

import (
	"context"
	"errors"
	"testing"
)

func TestExtractOptions(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Options
		rest int
	}{
		{"none", Params{"rows": "5"}, Options{}, 1},
		{"bypass flag present", Params{"bypass-cache": ""}, Options{BypassCache: true}, 0},
		{"force explicit", Params{"force-refresh": "true", "rows": "1"}, Options{ForceRefresh: true}, 1},
		{"legacy spellings", Params{"nocache": "1", "updatecache": "yes"}, Options{BypassCache: true, ForceRefresh: true}, 0},
		{"explicit false", Params{"bypass-cache": "false"}, Options{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, opts, err := ExtractOptions(tt.in)
			if err != nil {
				t.Fatalf("ExtractOptions() error = %v", err)
			}
			if opts != tt.want {
				t.Errorf("opts = %+v, want %+v", opts, tt.want)
			}
			if len(rest) != tt.rest {
				t.Errorf("rest = %v, want %d entries", rest, tt.rest)
			}
		})
	}
}

func TestExtractOptions_DoesNotMutateInput(t *testing.T) {
	in := Params{"bypass-cache": "", "rows": "5"}
	if _, _, err := ExtractOptions(in); err != nil {
		t.Fatalf("ExtractOptions() error = %v", err)
	}
	if _, ok := in["bypass-cache"]; !ok {
		t.Fatal("input params were modified")
	}
}

func TestExtractOptions_InvalidFlag(t *testing.T) {
	_, _, err := ExtractOptions(Params{"force-refresh": "maybe"})
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("error = %v, want ErrInvalidParam", err)
	}
}

func TestOptionsContext(t *testing.T) {
	ctx := context.Background()
	if got := OptionsFromContext(ctx); got != (Options{}) {
		t.Fatalf("empty context options = %+v", got)
	}
	want := Options{BypassCache: true}
	if got := OptionsFromContext(WithOptions(ctx, want)); got != want {
		t.Fatalf("OptionsFromContext() = %+v, want %+v", got, want)
	}
}

func TestParamsNamesSorted(t *testing.T) {
	names := Params{"b": "", "a": "", "c": ""}.Names()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("Names() = %v", names)
	}
}
