package scale

import "math"

// IELTS academic conversion. The published tables assume 40 questions;
// other totals are projected onto the same scale before lookup.
type ieltsTable struct {
	// minimum raw score (out of 40) for each half-band step from 9.0 down
	steps []ieltsStep
}

type ieltsStep struct {
	minRaw int
	band   float64
}

func (t ieltsTable) Band(raw, max float64) (float64, bool) {
	if max <= 0 {
		return 0, false
	}
	scaled := int(math.Round(raw / max * 40))
	for _, s := range t.steps {
		if scaled >= s.minRaw {
			return s.band, true
		}
	}
	return 0, true
}

var ieltsListening = ieltsTable{steps: []ieltsStep{
	{39, 9.0}, {37, 8.5}, {35, 8.0}, {32, 7.5}, {30, 7.0},
	{26, 6.5}, {23, 6.0}, {18, 5.5}, {16, 5.0}, {13, 4.5},
	{10, 4.0}, {8, 3.5}, {6, 3.0}, {4, 2.5}, {2, 2.0}, {1, 1.0},
}}

var ieltsReading = ieltsTable{steps: []ieltsStep{
	{39, 9.0}, {37, 8.5}, {35, 8.0}, {33, 7.5}, {30, 7.0},
	{27, 6.5}, {23, 6.0}, {19, 5.5}, {15, 5.0}, {13, 4.5},
	{10, 4.0}, {8, 3.5}, {6, 3.0}, {4, 2.5}, {2, 2.0}, {1, 1.0},
}}

func init() {
	Register("ielts.listening", ieltsListening)
	Register("ielts.reading", ieltsReading)
}
