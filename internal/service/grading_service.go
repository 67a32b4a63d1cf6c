package service

import (
	"context"
	"math"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/util"
	"school_quiz_backend/pkg/monitoring"
	"strings"
)

/* =========================================================
   纯判分核心：不碰存储，便于单测
========================================================= */

// GradeUnits 对照答案逐单元判分。客观题即时给分，主观题标记
// 待人工批改并保持 earnedPoints 为 null。
func GradeUnits(units []FlatUnit, answers model.AnswerMap) []model.ResultQuestion {
	rows := make([]model.ResultQuestion, 0, len(units))
	for _, unit := range units {
		selected := answers[AnswerKey(unit.QuestionID, unit.BlankNumber)]
		row := model.ResultQuestion{
			QuestionID:     unit.QuestionID,
			BlankNumber:    unit.BlankNumber,
			Type:           unit.Type,
			SelectedAnswer: selected,
			CorrectAnswer:  unit.CorrectAnswer,
			Points:         unit.Points,
		}

		if !unit.Type.AutoGradable() {
			row.ManualReviewRequired = true
			rows = append(rows, row)
			continue
		}

		correct := false
		switch unit.Type {
		case model.TrueFalse:
			// 布尔答案容忍大小写差异
			correct = selected != "" && strings.EqualFold(selected, unit.CorrectAnswer)
		default:
			correct = selected != "" && selected == unit.CorrectAnswer
		}

		earned := 0
		if correct {
			earned = unit.Points
		}
		row.EarnedPoints = &earned
		row.IsCorrect = &correct
		rows = append(rows, row)
	}
	return rows
}

type Aggregate struct {
	Score       *int
	TotalPoints int
	Percentage  *float64
	Status      model.ResultStatus
	AutoGraded  bool
}

// AggregateResult 由明细行汇总成绩。任何单元还在等人工批改时
// score/percentage 保持 null，状态为 needs_review。
func AggregateResult(rows []model.ResultQuestion) Aggregate {
	agg := Aggregate{}
	earned := 0
	pending := false
	hadManual := false
	for _, row := range rows {
		agg.TotalPoints += row.Points
		if row.ManualReviewRequired {
			hadManual = true
		}
		if row.PendingManual() {
			pending = true
			continue
		}
		if row.EarnedPoints != nil {
			earned += *row.EarnedPoints
		}
	}

	if pending {
		agg.Status = model.ResultNeedsReview
		return agg
	}

	agg.Score = &earned
	pct := 0.0
	if agg.TotalPoints > 0 {
		pct = math.Round(float64(earned)/float64(agg.TotalPoints)*100*100) / 100
	}
	agg.Percentage = &pct
	if hadManual {
		agg.Status = model.ResultGraded
	} else {
		agg.Status = model.ResultSubmitted
		agg.AutoGraded = true
	}
	return agg
}

/* =========================================================
   服务层：成绩读取与人工批改
========================================================= */

type GradingService struct {
	Results  repository.ResultRepository
	Quizzes  repository.QuizRepository
	Cache    Cache
	Notifier Notifier
	TTLs     CacheTTLs
}

func NewGradingService(results repository.ResultRepository, quizzes repository.QuizRepository, cache Cache, notifier Notifier, ttls CacheTTLs) *GradingService {
	return &GradingService{Results: results, Quizzes: quizzes, Cache: cache, Notifier: notifier, TTLs: ttls}
}

type ManualGradeReq struct {
	QuestionID  string  `json:"questionId" binding:"required"`
	BlankNumber *int    `json:"blankNumber"`
	Points      float64 `json:"points"`
	Feedback    string  `json:"feedback"`
}

// GradeManualQuestion 教师给主观题打分。最后一个待批单元批完后
// 整份成绩翻到 graded 并通知学生。
func (s *GradingService) GradeManualQuestion(ctx context.Context, resultID, teacherID string, req ManualGradeReq) (*model.QuizResult, error) {
	result, err := s.Results.FindByID(resultID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, util.NewNotFoundError("result")
	}

	quiz, err := s.Quizzes.FindByID(result.QuizID)
	if err != nil {
		return nil, err
	}
	if quiz != nil && quiz.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}

	rows, err := s.Results.ListQuestions(resultID)
	if err != nil {
		return nil, err
	}

	var target *model.ResultQuestion
	for i := range rows {
		if rows[i].QuestionID != req.QuestionID {
			continue
		}
		if !matchBlank(rows[i].BlankNumber, req.BlankNumber) {
			continue
		}
		target = &rows[i]
		break
	}
	if target == nil {
		return nil, util.NewNotFoundError("result question")
	}
	if !target.ManualReviewRequired {
		return nil, util.NewValidationError("question %s is auto-graded and cannot be graded manually", req.QuestionID)
	}

	earned := int(math.Round(req.Points))
	if earned < 0 {
		earned = 0
	}
	if earned > target.Points {
		earned = target.Points
	}
	target.EarnedPoints = &earned
	target.Feedback = req.Feedback

	// 整体重算而不是增量累加，重复批改同一题也能收敛到一致值
	agg := AggregateResult(rows)
	wasGraded := result.Status == model.ResultGraded
	result.Score = agg.Score
	result.TotalPoints = agg.TotalPoints
	result.Percentage = agg.Percentage
	result.Status = agg.Status
	result.AutoGraded = agg.AutoGraded

	if err := s.Results.UpdateGraded(result, []model.ResultQuestion{*target}); err != nil {
		return nil, err
	}
	monitoring.ManualGradesTotal.Inc()

	s.invalidateResult(ctx, result)

	if result.Status == model.ResultGraded && !wasGraded {
		title := "Quiz graded"
		body := ""
		if quiz != nil {
			body = quiz.Title
		}
		s.Notifier.Notify([]string{result.StudentID}, title, body, model.NotificationPayload{
			"quizId":   result.QuizID,
			"resultId": result.ID,
		})
	}
	return result, nil
}

func matchBlank(a, b *int) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// GetResult 读成绩明细，学生只能看自己的
func (s *GradingService) GetResult(ctx context.Context, resultID, callerID string, role model.UserRole) (*model.QuizResult, error) {
	key := resultCacheKey(resultID)
	var cached model.QuizResult
	if s.Cache.Get(ctx, key, &cached) {
		if !role.Privileged() && cached.StudentID != callerID {
			return nil, util.ErrPermissionDenied
		}
		return &cached, nil
	}

	result, err := s.Results.FindByID(resultID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, util.NewNotFoundError("result")
	}
	if !role.Privileged() && result.StudentID != callerID {
		return nil, util.ErrPermissionDenied
	}

	questions, err := s.Results.ListQuestions(resultID)
	if err != nil {
		return nil, err
	}
	result.Questions = questions

	s.Cache.Set(ctx, key, result, s.TTLs.Result)
	return result, nil
}

type resultPage struct {
	Results []model.QuizResult `json:"results"`
	Total   int64              `json:"total"`
}

func (s *GradingService) ListResultsForQuiz(ctx context.Context, quizID string, page, limit int) ([]model.QuizResult, int64, error) {
	key := quizResultsCacheKey(quizID, page, limit)
	var cached resultPage
	if s.Cache.Get(ctx, key, &cached) {
		return cached.Results, cached.Total, nil
	}

	results, total, err := s.Results.ListByQuiz(quizID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	s.Cache.Set(ctx, key, resultPage{Results: results, Total: total}, s.TTLs.Result)
	return results, total, nil
}

func (s *GradingService) ListResultsForStudent(ctx context.Context, studentID string, page, limit int) ([]model.QuizResult, int64, error) {
	key := studentResultsCacheKey(studentID, page, limit)
	var cached resultPage
	if s.Cache.Get(ctx, key, &cached) {
		return cached.Results, cached.Total, nil
	}

	results, total, err := s.Results.ListByStudent(studentID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	s.Cache.Set(ctx, key, resultPage{Results: results, Total: total}, s.TTLs.Result)
	return results, total, nil
}

func (s *GradingService) invalidateResult(ctx context.Context, result *model.QuizResult) {
	s.Cache.Delete(ctx, resultCacheKey(result.ID))
	s.Cache.DeleteByPrefix(ctx, "result:quiz:"+result.QuizID)
	s.Cache.DeleteByPrefix(ctx, "result:student:"+result.StudentID)
}
