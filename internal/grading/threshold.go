package grading

import "math"

// PointsForGrade finds the minimum number of points, counted in multiples
// of step, that reaches the target grade under the given norm. CvTE grades
// rise monotonically with points, so a bisection over the step grid finds
// the exact boundary.
//
// step defaults to 1 when zero or negative. When even full points miss the
// target (or the norm is unusable) the full score is returned rather than
// an error; callers display it as "unattainable".
func PointsForGrade(target float64, norm Norm, step float64) float64 {
	if !norm.Valid() {
		return 0
	}
	if step <= 0 {
		step = 1
	}
	max := float64(norm.MaxPoints)

	if g, ok := CvTEGrade(0, norm); ok && g >= target {
		return 0
	}
	if g, ok := CvTEGrade(max, norm); !ok || g < target {
		return max
	}

	lo, hi := 0, int(math.Ceil(max/step))
	for lo < hi {
		mid := (lo + hi) / 2
		p := math.Min(float64(mid)*step, max)
		if g, ok := CvTEGrade(p, norm); ok && g >= target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return math.Min(float64(lo)*step, max)
}

// PassingPoints is the whole-point threshold for a sufficient grade.
func PassingPoints(norm Norm) float64 {
	return PointsForGrade(PassingGrade, norm, 1)
}
