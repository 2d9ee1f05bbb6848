package assignment

import (
	"math"
	"time"

	"github.com/trezcool/masomo-lms/core/quiz"
)

// IsLate reports whether submittedAt is past the due date. Assignments without one are never late.
func IsLate(a Assignment, submittedAt time.Time) bool {
	return a.DueDate != nil && submittedAt.After(*a.DueDate)
}

// ApplyLatePenalty deducts the late penalty percentage of raw when the submission is late
// and the assignment accepts late submissions with a nonzero penalty.
func ApplyLatePenalty(a Assignment, isLate bool, raw float64) float64 {
	if !(isLate && a.AllowLateSubmissions && a.LatePenaltyPercentage > 0) {
		return raw
	}
	return math.Max(0, raw-raw*float64(a.LatePenaltyPercentage)/100)
}

type QuizScore struct {
	Score         float64 `json:"score"`
	TotalPoints   float64 `json:"total_points"`
	Percentage    int     `json:"percentage"`
	Correct       int     `json:"correct"`
	QuestionCount int     `json:"question_count"`
}

// ComputeQuizScore scores answers against the assignment's questions.
// Every question weighs PointsPossible / question count; per-question points are not used.
func ComputeQuizScore(a Assignment, answers []quiz.Answer) (QuizScore, error) {
	total := float64(a.PointsPossible)
	qs := QuizScore{TotalPoints: total, QuestionCount: len(a.Questions)}
	if len(a.Questions) == 0 {
		return qs, nil
	}

	correct, err := quiz.CountCorrect(a.Questions, answers)
	if err != nil {
		return QuizScore{}, err
	}
	qs.Correct = correct
	qs.Score = round2(total / float64(len(a.Questions)) * float64(correct))
	if total > 0 {
		qs.Percentage = int(math.Round(100 * qs.Score / total))
	}
	return qs, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
