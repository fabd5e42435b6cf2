package parser

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestDeltaDecode(t *testing.T) {
	tests := []struct {
		name   string
		deltas []int64
		want   []int64
	}{
		{"empty", nil, []int64{}},
		{"single", []int64{42}, []int64{42}},
		{"ascending", []int64{10, 1, 1, 5}, []int64{10, 11, 12, 17}},
		{"negative", []int64{-5, -5, 20}, []int64{-5, -10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeltaDecode(tt.deltas); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeltaDecode(%v) = %v, want %v", tt.deltas, got, tt.want)
			}
		})
	}
}

// TestDeltaRoundTrip tests that re-encoding decoded arrays reproduces them
func TestDeltaRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		deltas := make([]int64, rng.Intn(64))
		for j := range deltas {
			deltas[j] = rng.Int63n(1<<32) - 1<<31
		}
		if got := DeltaEncode(DeltaDecode(deltas)); !reflect.DeepEqual(got, deltas) {
			t.Fatalf("round trip of %v = %v", deltas, got)
		}
	}
}
