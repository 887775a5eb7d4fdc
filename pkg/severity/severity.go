// Package severity converts segmentation output into a disease coverage
// percentage.
package severity

// DiseasedThreshold is the segmentation activation above which a pixel
// counts as diseased tissue.
const DiseasedThreshold = 0.5

// FromMask returns the percentage of mask elements strictly greater than
// DiseasedThreshold, in [0,100]. An empty mask yields 0.
func FromMask(mask []float32) float64 {
	if len(mask) == 0 {
		return 0
	}

	diseased := 0
	for _, v := range mask {
		if v > DiseasedThreshold {
			diseased++
		}
	}

	return 100 * float64(diseased) / float64(len(mask))
}
