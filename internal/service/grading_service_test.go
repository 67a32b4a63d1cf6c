package service

import (
	"context"
	"school_quiz_backend/internal/model"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

func sampleMixedQuiz() *model.Quiz {
	return &model.Quiz{
		UUIDBase:  model.UUIDBase{ID: "quiz-1"},
		SchoolID:  "school-1",
		ClassID:   "class-1",
		TeacherID: "teacher-1",
		Title:     "Unit 3 checkpoint",
		QuestionSet: model.QuestionSet{
			Mode: model.QuestionSetFlat,
			Questions: []model.Question{
				{
					ID:            "q1",
					Type:          model.MultipleChoice,
					Text:          "2+2?",
					Points:        1,
					Options:       []string{"3", "4", "5"},
					CorrectOption: "4",
				},
				{
					ID:             "q2",
					Type:           model.TrueFalse,
					Text:           "The sky is green.",
					Points:         1,
					CorrectBoolean: boolPtr(false),
				},
				{
					ID:     "q3",
					Type:   model.Cloze,
					Text:   "The ___ sat on the ___.",
					Blanks: []model.ClozeBlank{
						{BlankNumber: 1, Options: []string{"cat", "dog"}, CorrectOption: "cat", Points: 1},
						{BlankNumber: 2, Options: []string{"mat", "roof"}, CorrectOption: "mat", Points: 1},
					},
				},
			},
		},
		IsPublished: true,
	}
}

func TestGradeUnitsAllCorrect(t *testing.T) {
	units := FlattenQuestionSet(sampleMixedQuiz().QuestionSet)
	answers := model.AnswerMap{
		"q1":   "4",
		"q2":   "false",
		"q3-1": "cat",
		"q3-2": "mat",
	}

	rows := GradeUnits(units, answers)
	if len(rows) != 4 {
		t.Fatalf("expected 4 graded rows, got %d", len(rows))
	}
	agg := AggregateResult(rows)

	if agg.Score == nil || *agg.Score != 4 {
		t.Fatalf("expected score 4, got %v", agg.Score)
	}
	if agg.TotalPoints != 4 {
		t.Fatalf("expected total 4, got %d", agg.TotalPoints)
	}
	if agg.Percentage == nil || *agg.Percentage != 100.00 {
		t.Fatalf("expected percentage 100.00, got %v", agg.Percentage)
	}
	if agg.Status != model.ResultSubmitted {
		t.Fatalf("expected status submitted, got %s", agg.Status)
	}
	if !agg.AutoGraded {
		t.Fatal("expected autoGraded to be true")
	}
}

func TestGradeUnitsPartiallyCorrect(t *testing.T) {
	units := FlattenQuestionSet(sampleMixedQuiz().QuestionSet)
	answers := model.AnswerMap{
		"q1":   "4",
		"q2":   "true", // 错
		"q3-1": "cat",
		"q3-2": "mat",
	}

	agg := AggregateResult(GradeUnits(units, answers))
	if agg.Score == nil || *agg.Score != 3 {
		t.Fatalf("expected score 3, got %v", agg.Score)
	}
	if agg.TotalPoints != 4 {
		t.Fatalf("expected total 4, got %d", agg.TotalPoints)
	}
	if agg.Percentage == nil || *agg.Percentage != 75.00 {
		t.Fatalf("expected percentage 75.00, got %v", agg.Percentage)
	}
	if agg.Status != model.ResultSubmitted || !agg.AutoGraded {
		t.Fatalf("expected auto-graded submitted, got %s autoGraded=%v", agg.Status, agg.AutoGraded)
	}
}

func TestGradeUnitsTrueFalseCaseInsensitive(t *testing.T) {
	units := []FlatUnit{{QuestionID: "q1", Type: model.TrueFalse, CorrectAnswer: "true", Points: 1}}
	rows := GradeUnits(units, model.AnswerMap{"q1": "True"})
	if rows[0].IsCorrect == nil || !*rows[0].IsCorrect {
		t.Fatal("expected case-insensitive boolean match")
	}
}

func TestGradeUnitsUnansweredEarnsZero(t *testing.T) {
	units := FlattenQuestionSet(sampleMixedQuiz().QuestionSet)
	agg := AggregateResult(GradeUnits(units, model.AnswerMap{}))

	if agg.Score == nil || *agg.Score != 0 {
		t.Fatalf("expected score 0, got %v", agg.Score)
	}
	if agg.Percentage == nil || *agg.Percentage != 0.00 {
		t.Fatalf("expected percentage 0.00, got %v", agg.Percentage)
	}
}

func TestAggregateWithPendingManual(t *testing.T) {
	units := []FlatUnit{
		{QuestionID: "q1", Type: model.MultipleChoice, CorrectAnswer: "a", Points: 1},
		{QuestionID: "q2", Type: model.Essay, Points: 5},
	}
	rows := GradeUnits(units, model.AnswerMap{"q1": "a", "q2": "my essay"})
	agg := AggregateResult(rows)

	if agg.Score != nil {
		t.Fatalf("expected null score while manual grading pending, got %d", *agg.Score)
	}
	if agg.Percentage != nil {
		t.Fatalf("expected null percentage, got %v", *agg.Percentage)
	}
	if agg.Status != model.ResultNeedsReview {
		t.Fatalf("expected needs_review, got %s", agg.Status)
	}
	if agg.TotalPoints != 6 {
		t.Fatalf("expected total 6, got %d", agg.TotalPoints)
	}
}

func TestAggregateAfterAllManualGraded(t *testing.T) {
	units := []FlatUnit{
		{QuestionID: "q1", Type: model.MultipleChoice, CorrectAnswer: "a", Points: 1},
		{QuestionID: "q2", Type: model.Essay, Points: 5},
	}
	rows := GradeUnits(units, model.AnswerMap{"q1": "a", "q2": "my essay"})
	for i := range rows {
		if rows[i].PendingManual() {
			rows[i].EarnedPoints = intPtr(4)
		}
	}

	agg := AggregateResult(rows)
	if agg.Score == nil || *agg.Score != 5 {
		t.Fatalf("expected score 5, got %v", agg.Score)
	}
	if agg.Percentage == nil || *agg.Percentage != 83.33 {
		t.Fatalf("expected percentage 83.33, got %v", agg.Percentage)
	}
	if agg.Status != model.ResultGraded {
		t.Fatalf("expected graded, got %s", agg.Status)
	}
	if agg.AutoGraded {
		t.Fatal("result with manual units must not be flagged autoGraded")
	}
}

func TestClozeBlanksGradeIndependently(t *testing.T) {
	quiz := sampleMixedQuiz()
	units := FlattenQuestionSet(quiz.QuestionSet)

	clozeUnits := 0
	for _, u := range units {
		if u.Type == model.Cloze {
			clozeUnits++
			if u.BlankNumber == nil {
				t.Fatal("cloze unit missing blank number")
			}
		}
	}
	if clozeUnits != 2 {
		t.Fatalf("expected 2 cloze units, got %d", clozeUnits)
	}

	// 只答对一个空拿一分
	rows := GradeUnits(units, model.AnswerMap{"q3-1": "cat", "q3-2": "roof"})
	earned := 0
	for _, row := range rows {
		if row.Type == model.Cloze && row.EarnedPoints != nil {
			earned += *row.EarnedPoints
		}
	}
	if earned != 1 {
		t.Fatalf("expected 1 point from cloze blanks, got %d", earned)
	}
}

func newGradingFixture(t *testing.T) (*GradingService, *AttemptService, *memQuizRepo, *recordingNotifier) {
	t.Helper()
	quizzes := newMemQuizRepo()
	attempts := newMemAttemptRepo()
	results := newMemResultRepo(attempts)
	notifier := &recordingNotifier{}
	grading := NewGradingService(results, quizzes, noopCache{}, notifier, CacheTTLs{})
	attemptSvc := NewAttemptService(quizzes, attempts, results, noopCache{}, notifier, testLogger(), 0)
	return grading, attemptSvc, quizzes, notifier
}

func TestManualGradeFlipsToGraded(t *testing.T) {
	grading, attemptSvc, quizzes, _ := newGradingFixture(t)
	ctx := context.Background()

	quiz := sampleMixedQuiz()
	quiz.QuestionSet.Questions = append(quiz.QuestionSet.Questions, model.Question{
		ID:     "q4",
		Type:   model.Essay,
		Text:   "Explain your reasoning.",
		Points: 5,
	})
	if err := quizzes.Create(quiz); err != nil {
		t.Fatal(err)
	}

	view, err := attemptSvc.StartAttempt(ctx, quiz.ID, "student-1", "school-1")
	if err != nil {
		t.Fatal(err)
	}
	result, err := attemptSvc.SubmitAttempt(ctx, view.SessionID, "student-1", model.AnswerMap{
		"q1": "4", "q2": "false", "q3-1": "cat", "q3-2": "mat", "q4": "because",
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.ResultNeedsReview {
		t.Fatalf("expected needs_review before manual grading, got %s", result.Status)
	}
	if result.Score != nil {
		t.Fatal("expected null score before manual grading")
	}

	graded, err := grading.GradeManualQuestion(ctx, result.ID, "teacher-1", ManualGradeReq{
		QuestionID: "q4",
		Points:     4,
		Feedback:   "solid reasoning",
	})
	if err != nil {
		t.Fatal(err)
	}
	if graded.Status != model.ResultGraded {
		t.Fatalf("expected graded after last manual unit, got %s", graded.Status)
	}
	if graded.Score == nil || *graded.Score != 8 {
		t.Fatalf("expected score 8, got %v", graded.Score)
	}
	if graded.Percentage == nil || *graded.Percentage != 88.89 {
		t.Fatalf("expected percentage 88.89, got %v", graded.Percentage)
	}
}

func TestManualGradeRejectsObjectiveRow(t *testing.T) {
	grading, attemptSvc, quizzes, _ := newGradingFixture(t)
	ctx := context.Background()

	quiz := sampleMixedQuiz()
	if err := quizzes.Create(quiz); err != nil {
		t.Fatal(err)
	}
	view, err := attemptSvc.StartAttempt(ctx, quiz.ID, "student-1", "school-1")
	if err != nil {
		t.Fatal(err)
	}
	result, err := attemptSvc.SubmitAttempt(ctx, view.SessionID, "student-1", model.AnswerMap{"q1": "4"}, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := grading.GradeManualQuestion(ctx, result.ID, "teacher-1", ManualGradeReq{
		QuestionID: "q1",
		Points:     1,
	}); err == nil {
		t.Fatal("expected error when manually grading an objective question")
	}
}

func TestManualGradeClampsPoints(t *testing.T) {
	grading, attemptSvc, quizzes, _ := newGradingFixture(t)
	ctx := context.Background()

	quiz := sampleMixedQuiz()
	quiz.QuestionSet.Questions = append(quiz.QuestionSet.Questions, model.Question{
		ID:     "q4",
		Type:   model.Essay,
		Points: 5,
	})
	if err := quizzes.Create(quiz); err != nil {
		t.Fatal(err)
	}
	view, err := attemptSvc.StartAttempt(ctx, quiz.ID, "student-1", "school-1")
	if err != nil {
		t.Fatal(err)
	}
	result, err := attemptSvc.SubmitAttempt(ctx, view.SessionID, "student-1", model.AnswerMap{"q4": "text"}, false)
	if err != nil {
		t.Fatal(err)
	}

	graded, err := grading.GradeManualQuestion(ctx, result.ID, "teacher-1", ManualGradeReq{
		QuestionID: "q4",
		Points:     99,
	})
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := grading.Results.ListQuestions(graded.ID)
	for _, row := range rows {
		if row.QuestionID == "q4" {
			if row.EarnedPoints == nil || *row.EarnedPoints != 5 {
				t.Fatalf("expected clamp to 5, got %v", row.EarnedPoints)
			}
		}
	}
}
