package pipeline

import (
	"math"

	"modelmarket/internal/domain"
)

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// OverallScore is the rounded arithmetic mean of the sub-scores.
func OverallScore(scores ...int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

// Grade maps a 0-100 score to a letter grade. Anything below 65 is a C.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 80:
		return "A-"
	case score >= 75:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 65:
		return "B-"
	default:
		return "C"
	}
}

// AssessModelQuality computes four clamped sub-scores from fixed bases,
// bonuses tied to the fabricated analysis and noise.
func AssessModelQuality(r Rand, ml domain.MLAnalysis, perf domain.Performance, sec domain.SecurityResult) domain.Quality {
	accuracy := 70 + r.IntN(16)
	if ml.LayerCount >= 60 {
		accuracy += 10
	} else {
		accuracy += 5
	}

	robustness := 65 + r.IntN(21)
	if !ml.Pruned {
		robustness += 5
	}

	efficiency := 60 + r.IntN(16)
	if perf.InferenceTimeMs < 50 {
		efficiency += 20
	} else {
		efficiency += 5
	}
	if ml.Quantized {
		efficiency += 5
	}

	security := 75 + r.IntN(11)
	if sec.Safe {
		security += 15
	} else {
		security -= 40
	}

	q := domain.Quality{
		Accuracy:   clampScore(accuracy),
		Robustness: clampScore(robustness),
		Efficiency: clampScore(efficiency),
		Security:   clampScore(security),
	}
	q.Overall = OverallScore(q.Accuracy, q.Robustness, q.Efficiency, q.Security)
	q.Grade = Grade(q.Overall)
	return q
}
