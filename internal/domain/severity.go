package domain

import "fmt"

// Category ladders for peak one-hour precipitation depth. Each threshold is
// 0.1 inch (2.54 mm) above the previous; index i corresponds to code i+1.
var (
	ladderMM     = [10]float64{2.54, 5.08, 7.62, 10.16, 12.7, 15.24, 17.78, 20.32, 22.86, 25.4}
	ladderInches = [10]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
)

// Category maps a precipitation depth in millimeters to a two-digit severity
// code "00".."10": the highest ladder threshold not exceeding the depth.
// Depths below 2.54 mm classify as "00".
func Category(mm float64) string {
	return classify(mm, ladderMM)
}

// CategoryInches is Category for a depth in inches (ladder 0.1..1.0).
func CategoryInches(in float64) string {
	return classify(in, ladderInches)
}

func classify(v float64, ladder [10]float64) string {
	for i := len(ladder) - 1; i >= 0; i-- {
		if v >= ladder[i] {
			return fmt.Sprintf("%02d", i+1)
		}
	}
	return "00"
}
