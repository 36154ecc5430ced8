package pricing

import "testing"

func TestInterpolate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name              string
		tsQuery, tsBefore int64
		priceBefore       float64
		tsAfter           int64
		priceAfter        float64
		want              float64
	}{
		{name: "degenerate bracket returns before", tsQuery: 1000, tsBefore: 1000, priceBefore: 5, tsAfter: 1000, priceAfter: 10, want: 5},
		{name: "midpoint", tsQuery: 1500, tsBefore: 1000, priceBefore: 2, tsAfter: 2000, priceAfter: 4, want: 3},
		{name: "at before endpoint", tsQuery: 1000, tsBefore: 1000, priceBefore: 10, tsAfter: 2000, priceAfter: 20, want: 10},
		{name: "at after endpoint", tsQuery: 2000, tsBefore: 1000, priceBefore: 10, tsAfter: 2000, priceAfter: 20, want: 20},
		{name: "decimal prices", tsQuery: 1100, tsBefore: 1000, priceBefore: 1.5, tsAfter: 1200, priceAfter: 2.5, want: 2.0},
		{name: "reversed bracket", tsQuery: 1500, tsBefore: 2000, priceBefore: 4, tsAfter: 1000, priceAfter: 2, want: 3},
		{name: "negative prices", tsQuery: 1500, tsBefore: 1000, priceBefore: -2, tsAfter: 2000, priceAfter: -4, want: -3},
		{name: "extrapolation past after", tsQuery: 3000, tsBefore: 1000, priceBefore: 2, tsAfter: 2000, priceAfter: 4, want: 6},
		{name: "extrapolation before bracket", tsQuery: 500, tsBefore: 1000, priceBefore: 2, tsAfter: 2000, priceAfter: 4, want: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Interpolate(tc.tsQuery, tc.tsBefore, tc.priceBefore, tc.tsAfter, tc.priceAfter)
			if got != tc.want {
				t.Fatalf("Interpolate(%d, %d, %v, %d, %v)=%v want %v",
					tc.tsQuery, tc.tsBefore, tc.priceBefore, tc.tsAfter, tc.priceAfter, got, tc.want)
			}
		})
	}
}

func TestInterpolateMonotonic(t *testing.T) {
	t.Parallel()

	const (
		tsBefore, tsAfter       = int64(1000), int64(2000)
		priceBefore, priceAfter = 2.0, 8.0
	)

	prev := Interpolate(tsBefore, tsBefore, priceBefore, tsAfter, priceAfter)
	for ts := tsBefore + 100; ts <= tsAfter; ts += 100 {
		cur := Interpolate(ts, tsBefore, priceBefore, tsAfter, priceAfter)
		if cur < prev {
			t.Fatalf("not monotonic: price at %d (%v) < price at %d (%v)", ts, cur, ts-100, prev)
		}
		prev = cur
	}
	if prev != priceAfter {
		t.Fatalf("endpoint mismatch: got %v want %v", prev, priceAfter)
	}
}
