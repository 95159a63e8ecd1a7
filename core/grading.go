package core

import "math"

// Percent converts marks obtained into a whole percentage of totalMarks,
// rounded to the nearest integer. A missing or zero total yields 0.
func Percent(marksObtained, totalMarks float64) int {
	if totalMarks <= 0 {
		return 0
	}
	return int(math.Round(marksObtained / totalMarks * 100))
}

// LetterGrade maps a whole percentage to a letter grade.
// Thresholds are inclusive of the lower bound; the highest qualifying bucket wins.
func LetterGrade(percent int) string {
	switch {
	case percent >= 90:
		return "A+"
	case percent >= 85:
		return "A"
	case percent >= 80:
		return "A-"
	case percent >= 75:
		return "B+"
	case percent >= 70:
		return "B"
	case percent >= 65:
		return "B-"
	case percent >= 60:
		return "C+"
	case percent >= 55:
		return "C"
	case percent >= 50:
		return "C-"
	default:
		return "F"
	}
}
