package scale_test

import (
	"testing"

	"github.com/prepstack/prepstack/internal/scale"
)

func TestApplyIELTS(t *testing.T) {
	cases := []struct {
		key  string
		raw  float64
		max  float64
		want float64
	}{
		{"ielts.listening", 40, 40, 9.0},
		{"ielts.listening", 30, 40, 7.0},
		{"ielts.listening", 16, 40, 5.0},
		{"ielts.listening", 0, 40, 0},
		{"ielts.reading", 33, 40, 7.5},
		{"ielts.reading", 15, 40, 5.0},
		// shorter skills project onto the 40-question table
		{"ielts.listening", 10, 10, 9.0},
		{"ielts.reading", 5, 10, 5.5},
	}
	for _, tc := range cases {
		got, ok := scale.Apply(tc.key, tc.raw, tc.max)
		if !ok {
			t.Fatalf("Apply(%s) not covered", tc.key)
		}
		if got != tc.want {
			t.Errorf("Apply(%s, %v/%v) = %v, want %v", tc.key, tc.raw, tc.max, got, tc.want)
		}
	}
}

func TestApplyUnknownProfile(t *testing.T) {
	if _, ok := scale.Apply("toeic.reading", 30, 40); ok {
		t.Fatal("unregistered profile must report not covered")
	}
}
