package frame

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		Ints("0", 486, 598, 93),
		Floats("ratio", 0.5, math.NaN(), -1.25),
		Strings("time", "1710093848.85", "1710093848.85", "1710093848.85"),
		Bools("ok", true, false, true),
		Times("start_date",
			time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 8, 3, 0, 0, 0, 123, time.UTC),
		),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestCodec_RoundTrip(t *testing.T) {
	f := sampleFrame(t)

	payload, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(f) {
		t.Errorf("round trip mismatch:\n got=%+v\nwant=%+v", got, f)
	}
}

func TestCodec_RoundTripCustomIndex(t *testing.T) {
	f := MustNew(Ints("v", 1, 2))
	if err := f.SetIndex(Strings("day", "mon", "tue")); err != nil {
		t.Fatalf("SetIndex() error = %v", err)
	}

	payload, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Index.Name != "day" || got.Index.Strings[1] != "tue" {
		t.Errorf("index not preserved: %+v", got.Index)
	}
}

func TestCodec_EmptyFrame(t *testing.T) {
	f := MustNew()
	payload, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Len() != 0 || len(got.Columns) != 0 {
		t.Errorf("expected empty frame, got %d rows %d cols", got.Len(), len(got.Columns))
	}
}

func TestCodec_Deterministic(t *testing.T) {
	f := sampleFrame(t)
	a, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding the same frame twice should yield identical bytes")
	}
}

func TestDecode_Corrupt(t *testing.T) {
	payload, err := Encode(sampleFrame(t))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := map[string][]byte{
		"empty":     nil,
		"not gzip":  []byte("plain text"),
		"truncated": payload[:len(payload)/2],
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(in); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode() error = %v, want ErrCorrupt", err)
			}
		})
	}
}
