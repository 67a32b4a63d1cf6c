package service

import (
	"context"
	"errors"
	"reflect"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/util"
	"testing"
)

func strPtr(s string) *string { return &s }

func newQuizFixture(t *testing.T) (*QuizService, *memQuizRepo, *recordingNotifier) {
	t.Helper()
	quizzes := newMemQuizRepo()
	notifier := &recordingNotifier{}
	svc := NewQuizService(quizzes, noopCache{}, notifier, CacheTTLs{})
	return svc, quizzes, notifier
}

func validQuizReq() QuizReq {
	return QuizReq{
		Title:   strPtr("Chapter 5 quiz"),
		ClassID: strPtr("class-1"),
		Questions: &[]QuestionReq{
			{
				Type:          model.MultipleChoice,
				Text:          "Pick one",
				Options:       []string{"a", "b"},
				CorrectOption: "a",
			},
		},
	}
}

func TestCreateQuizValidation(t *testing.T) {
	svc, _, _ := newQuizFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*QuizReq)
	}{
		{"missing title", func(r *QuizReq) { r.Title = nil }},
		{"missing class", func(r *QuizReq) { r.ClassID = nil }},
		{"no questions", func(r *QuizReq) { r.Questions = nil }},
		{"both flat and sections", func(r *QuizReq) {
			r.Sections = &[]SectionReq{{Questions: []QuestionReq{{
				Type: model.TrueFalse, Text: "t", CorrectBoolean: boolPtr(true),
			}}}}
		}},
		{"mc correct not among options", func(r *QuizReq) {
			(*r.Questions)[0].CorrectOption = "z"
		}},
		{"mc single option", func(r *QuizReq) {
			(*r.Questions)[0].Options = []string{"a"}
		}},
		{"tf without boolean", func(r *QuizReq) {
			(*r.Questions)[0] = QuestionReq{Type: model.TrueFalse, Text: "t"}
		}},
		{"cloze without blanks", func(r *QuizReq) {
			(*r.Questions)[0] = QuestionReq{Type: model.Cloze, Text: "c"}
		}},
		{"cloze blank bad answer", func(r *QuizReq) {
			(*r.Questions)[0] = QuestionReq{Type: model.Cloze, Text: "c", Blanks: []ClozeBlankReq{
				{BlankNumber: 1, Options: []string{"x", "y"}, CorrectOption: "nope"},
			}}
		}},
		{"essay points above max", func(r *QuizReq) {
			(*r.Questions)[0] = QuestionReq{Type: model.Essay, Text: "e", Points: 9}
		}},
		{"unknown type", func(r *QuizReq) {
			(*r.Questions)[0] = QuestionReq{Type: "matching", Text: "m"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validQuizReq()
			tc.mutate(&req)
			_, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve *util.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestCreateQuizDefaultsObjectivePoints(t *testing.T) {
	svc, _, _ := newQuizFixture(t)
	quiz, err := svc.CreateQuiz(context.Background(), "teacher-1", "school-1", validQuizReq())
	if err != nil {
		t.Fatal(err)
	}
	if quiz.QuestionSet.Questions[0].Points != model.DefaultObjectivePoints {
		t.Fatalf("expected default point value, got %d", quiz.QuestionSet.Questions[0].Points)
	}
	if quiz.QuestionSet.Questions[0].ID == "" {
		t.Fatal("question id must be assigned")
	}
}

func TestPublishRequiresAutoGradableUnit(t *testing.T) {
	svc, _, notifier := newQuizFixture(t)
	ctx := context.Background()

	essayOnly := QuizReq{
		Title:   strPtr("Essay only"),
		ClassID: strPtr("class-1"),
		Questions: &[]QuestionReq{
			{Type: model.Essay, Text: "Discuss.", Points: 5},
		},
	}
	quiz, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", essayOnly)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PublishQuiz(ctx, quiz.ID, true); !util.IsConflict(err) {
		t.Fatalf("expected conflict publishing all-manual quiz, got %v", err)
	}

	mixed, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", validQuizReq())
	if err != nil {
		t.Fatal(err)
	}
	published, err := svc.PublishQuiz(ctx, mixed.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !published.IsPublished || published.PublishedAt == nil {
		t.Fatal("publish did not stick")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.titles) == 0 {
		t.Fatal("expected a publish notification")
	}
}

func TestUpdateQuizOwnershipAfterPublish(t *testing.T) {
	svc, _, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", validQuizReq())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PublishQuiz(ctx, quiz.ID, true); err != nil {
		t.Fatal(err)
	}

	// 发布后他人不能改
	_, err = svc.UpdateQuiz(ctx, quiz.ID, "teacher-2", QuizReq{Title: strPtr("hijack")})
	if err == nil {
		t.Fatal("expected permission denied for non-owner")
	}

	// 本人可以改
	updated, err := svc.UpdateQuiz(ctx, quiz.ID, "teacher-1", QuizReq{Title: strPtr("renamed")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("title not updated: %s", updated.Title)
	}
	if len(updated.QuestionSet.Questions) != 1 {
		t.Fatal("question set must survive a title-only update")
	}
}

func TestGetQuizStudentViewHidesUnpublishedAndAnswers(t *testing.T) {
	svc, _, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", validQuizReq())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetQuiz(ctx, quiz.ID, model.Student); err == nil {
		t.Fatal("student must not see unpublished quiz")
	}

	if _, err := svc.PublishQuiz(ctx, quiz.ID, true); err != nil {
		t.Fatal(err)
	}
	view, err := svc.GetQuiz(ctx, quiz.ID, model.Student)
	if err != nil {
		t.Fatal(err)
	}
	if view.QuestionSet.Questions[0].CorrectOption != "" {
		t.Fatal("student view leaked the answer key")
	}

	full, err := svc.GetQuiz(ctx, quiz.ID, model.Teacher)
	if err != nil {
		t.Fatal(err)
	}
	if full.QuestionSet.Questions[0].CorrectOption == "" {
		t.Fatal("teacher view must include the answer key")
	}
}

func TestFlattenSectionedQuestionSet(t *testing.T) {
	qs := model.QuestionSet{
		Mode: model.QuestionSetSectioned,
		Sections: []model.Section{
			{
				Instruction: "Part A",
				Questions: []model.Question{
					{ID: "a1", Type: model.MultipleChoice, Options: []string{"x", "y"}, CorrectOption: "x", Points: 2},
				},
			},
			{
				Instruction: "Part B",
				Questions: []model.Question{
					{ID: "b1", Type: model.Essay, Points: 3},
					{ID: "b2", Type: model.Cloze, Blanks: []model.ClozeBlank{
						{BlankNumber: 1, Options: []string{"u", "v"}, CorrectOption: "u", Points: 1},
					}},
				},
			},
		},
	}

	units := FlattenQuestionSet(qs)
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	total := 0
	for _, u := range units {
		total += u.Points
	}
	if total != 6 {
		t.Fatalf("expected total 6, got %d", total)
	}
	if key := AnswerKey(units[2].QuestionID, units[2].BlankNumber); key != "b2-1" {
		t.Fatalf("unexpected cloze answer key %s", key)
	}
}

func TestBuildStudentViewShuffleStability(t *testing.T) {
	quiz := sampleMixedQuiz()
	quiz.ShuffleQuestions = true
	quiz.ShuffleOptions = true

	a := BuildStudentView(quiz, "student-1")
	b := BuildStudentView(quiz, "student-1")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same student must always see the same arrangement")
	}

	// 原始题序不被修改
	if quiz.QuestionSet.Questions[0].ID != "q1" {
		t.Fatal("source question set was mutated")
	}
}

func TestBuildStudentViewSectionsKeepOrder(t *testing.T) {
	quiz := &model.Quiz{
		UUIDBase:         model.UUIDBase{ID: "quiz-sec"},
		ShuffleQuestions: true,
		QuestionSet: model.QuestionSet{
			Mode: model.QuestionSetSectioned,
			Sections: []model.Section{
				{Instruction: "A", Questions: []model.Question{
					{ID: "a1", Type: model.TrueFalse, CorrectBoolean: boolPtr(true)},
					{ID: "a2", Type: model.TrueFalse, CorrectBoolean: boolPtr(true)},
				}},
				{Instruction: "B", Questions: []model.Question{
					{ID: "b1", Type: model.TrueFalse, CorrectBoolean: boolPtr(false)},
				}},
			},
		},
	}

	view := BuildStudentView(quiz, "student-1")
	if len(view.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(view.Sections))
	}
	if view.Sections[0].Instruction != "A" || view.Sections[1].Instruction != "B" {
		t.Fatal("section order must be preserved")
	}
	for _, sec := range view.Sections {
		for _, q := range sec.Questions {
			if q.CorrectBoolean != nil {
				t.Fatal("section view leaked answers")
			}
		}
	}
}

func TestDeleteQuizRequiresOwner(t *testing.T) {
	svc, quizzes, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := svc.CreateQuiz(ctx, "teacher-1", "school-1", validQuizReq())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteQuiz(ctx, quiz.ID, "teacher-2"); err == nil {
		t.Fatal("expected permission denied")
	}
	if err := svc.DeleteQuiz(ctx, quiz.ID, "teacher-1"); err != nil {
		t.Fatal(err)
	}
	found, _ := quizzes.FindByID(quiz.ID)
	if found != nil {
		t.Fatal("quiz not deleted")
	}
}
