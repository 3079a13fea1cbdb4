package ensemble

import (
	"math/rand"
	"testing"
)

func TestDrawCounts(t *testing.T) {
	weights := []float64{0, 1, 2, 0, 1}

	tests := []struct {
		name    string
		replace bool
		nDraw   int
		want    float64
	}{
		{"with replacement", true, 50, 50},
		{"without replacement", false, 2, 2},
		{"without replacement capped", false, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			for rep := 0; rep < 20; rep++ {
				counts := drawCounts(rng, weights, tt.nDraw, tt.replace)
				total := 0.0
				for i, c := range counts {
					if weights[i] == 0 && c != 0 {
						t.Fatalf("zero-weight sample %d drawn %v times", i, c)
					}
					if !tt.replace && c > 1 {
						t.Fatalf("sample %d drawn %v times without replacement", i, c)
					}
					total += c
				}
				if total != tt.want {
					t.Fatalf("expected %v draws, got %v", tt.want, total)
				}
			}
		})
	}
}

func TestDrawWithReplacementFavoursHeavyWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	counts := drawWithReplacement(rng, []float64{1, 9}, 10000)
	if counts[1] < 8500 || counts[1] > 9500 {
		t.Errorf("expected about 9000 draws of the heavy sample, got %v", counts[1])
	}
}

func TestOutOfBag(t *testing.T) {
	counts := []float64{2, 0, 1, 0}
	weights := []float64{1, 1, 0, 0}

	oob := outOfBag(counts, weights, false)
	if len(oob) != 2 || oob[0] != 1 || oob[1] != 3 {
		t.Errorf("expected undrawn samples [1 3], got %v", oob)
	}

	// holdout: exactly the zero-weight samples, even if drawn counts say otherwise
	oob = outOfBag(counts, weights, true)
	if len(oob) != 2 || oob[0] != 2 || oob[1] != 3 {
		t.Errorf("expected zero-weight samples [2 3], got %v", oob)
	}
}

func TestWithShadow(t *testing.T) {
	cols := [][]float64{{1, 2, 3}, {4, 5, 6}}
	out := withShadow(cols, []int{2, 0, 1})
	if len(out) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(out))
	}
	want := [][]float64{{3, 1, 2}, {6, 4, 5}}
	for j := 0; j < 2; j++ {
		for i := 0; i < 3; i++ {
			if out[2+j][i] != want[j][i] {
				t.Errorf("shadow[%d][%d] = %v, want %v", j, i, out[2+j][i], want[j][i])
			}
		}
	}
}
