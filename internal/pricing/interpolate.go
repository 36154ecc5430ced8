package pricing

// Interpolate computes a price at tsQuery from two known points by plain
// linear interpolation. tsQuery is allowed to fall outside the bracket
// (extrapolation). Equal bracket timestamps return priceBefore to avoid
// dividing by zero.
func Interpolate(tsQuery, tsBefore int64, priceBefore float64, tsAfter int64, priceAfter float64) float64 {
	if tsBefore == tsAfter {
		return priceBefore
	}
	ratio := float64(tsQuery-tsBefore) / float64(tsAfter-tsBefore)
	return priceBefore + (priceAfter-priceBefore)*ratio
}
