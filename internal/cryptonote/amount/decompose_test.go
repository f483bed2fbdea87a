package amount

import "testing"

func sumDecomposition(d Decomposition) uint64 {
	total := d.Dust
	for _, c := range d.Chunks {
		total += c
	}
	return total
}

func TestDecomposeScenarioS1(t *testing.T) {
	cases := []struct {
		name          string
		amount        uint64
		dustThreshold uint64
		wantChunks    []uint64
		wantDust      uint64
	}{
		{
			name:          "dust below smallest chunk",
			amount:        8_900_100,
			dustThreshold: 10,
			wantChunks:    []uint64{100, 900_000, 8_000_000},
			wantDust:      0,
		},
		{
			name:          "dust folds the 100 chunk",
			amount:        8_900_100,
			dustThreshold: 1000,
			wantChunks:    []uint64{900_000, 8_000_000},
			wantDust:      100,
		},
		{
			name:          "every digit is dust",
			amount:        8100,
			dustThreshold: 1_000_000,
			wantChunks:    nil,
			wantDust:      8100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decompose(tc.amount, tc.dustThreshold)
			if len(got.Chunks) != len(tc.wantChunks) {
				t.Fatalf("Chunks = %v, want %v", got.Chunks, tc.wantChunks)
			}
			for i := range tc.wantChunks {
				if got.Chunks[i] != tc.wantChunks[i] {
					t.Fatalf("Chunks = %v, want %v", got.Chunks, tc.wantChunks)
				}
			}
			if got.Dust != tc.wantDust {
				t.Fatalf("Dust = %d, want %d", got.Dust, tc.wantDust)
			}
		})
	}
}

func TestDecomposeReversesToOriginalAmount(t *testing.T) {
	amounts := []uint64{0, 1, 9, 10, 99, 100, 8_900_100, 8100, 123_456_789, 1_000_000_000_000}
	thresholds := []uint64{0, 1, 10, 1000, 1_000_000}

	for _, a := range amounts {
		for _, dt := range thresholds {
			got := Decompose(a, dt)
			if sum := sumDecomposition(got); sum != a {
				t.Fatalf("Decompose(%d, %d) chunks+dust = %d, want %d", a, dt, sum, a)
			}
		}
	}
}

func TestDecomposeEmitsDustAtMostOnce(t *testing.T) {
	// Dust is a single field, not a repeated chunk, so "at most once" is
	// structural here; this test pins that every non-dust chunk is a single
	// digit times a power of ten, which is the other half of invariant.
	got := Decompose(8_900_100, 1000)
	for _, c := range got.Chunks {
		scale := uint64(1)
		for c%(scale*10) == 0 {
			scale *= 10
		}
		digit := c / scale
		if digit < 1 || digit > 9 || digit*scale != c {
			t.Fatalf("chunk %d is not of the form d*10^k for 1<=d<=9", c)
		}
	}
}

func TestDecomposeZeroAmount(t *testing.T) {
	got := Decompose(0, 100)
	if len(got.Chunks) != 0 || got.Dust != 0 {
		t.Fatalf("Decompose(0, 100) = %+v, want empty", got)
	}
}
