package service

import (
	"context"
	"errors"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/util"
	"school_quiz_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 无时限且无截止时间的测验，attempt 默认 24 小时后过期
const defaultAttemptDuration = 24 * time.Hour

type AttemptService struct {
	Quizzes  repository.QuizRepository
	Attempts repository.AttemptRepository
	Results  repository.ResultRepository
	Cache    Cache
	Notifier Notifier
	Logger   *zap.Logger

	// Grace 截止后仍接受手动提交的宽限期
	Grace time.Duration
}

func NewAttemptService(quizzes repository.QuizRepository, attempts repository.AttemptRepository, results repository.ResultRepository, cache Cache, notifier Notifier, logger *zap.Logger, grace time.Duration) *AttemptService {
	return &AttemptService{
		Quizzes:  quizzes,
		Attempts: attempts,
		Results:  results,
		Cache:    cache,
		Notifier: notifier,
		Logger:   logger,
		Grace:    grace,
	}
}

type AttemptView struct {
	SessionID        string            `json:"sessionId"`
	AttemptNumber    int               `json:"attemptNumber"`
	Status           string            `json:"status"`
	StartTime        time.Time         `json:"startTime"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Answers          model.AnswerMap   `json:"answers"`
	Resumed          bool              `json:"resumed"`
	QuestionSet      model.QuestionSet `json:"questionSet"`
}

// withRetry 超时透明重试一次，仍失败则包成 StoreTimeoutError
func (s *AttemptService) withRetry(op string, fn func() error) error {
	err := fn()
	if err == nil || !util.IsTimeout(err) {
		return err
	}
	s.Logger.Warn("store operation timed out, retrying once", zap.String("op", op), zap.Error(err))
	if err = fn(); err != nil {
		if util.IsTimeout(err) {
			return &util.StoreTimeoutError{Op: op, Err: err}
		}
		return err
	}
	return nil
}

/* =========================================================
   开始 / 断点续答
========================================================= */

// StartAttempt 取或建进行中的 attempt。幂等：已有进行中的
// attempt 时恢复它，并发重复请求靠唯一槽位收敛到同一条。
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, studentID, schoolID string) (*AttemptView, error) {
	quiz, err := s.Quizzes.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}
	now := time.Now()
	if err := checkWindow(quiz, now); err != nil {
		return nil, err
	}

	// 已有成绩即视为已完成，永久阻止新 attempt
	existing, err := s.Results.FindByPair(quizID, studentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, util.ErrQuizCompleted
	}

	active, err := s.Attempts.FindActive(quizID, studentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.Expired(now) {
			if _, err := s.finalizeExpired(ctx, quiz, active); err != nil {
				return nil, err
			}
			return nil, util.ErrQuizCompleted
		}
		return s.buildView(quiz, active, studentID, true, now), nil
	}

	count, err := s.Results.CountForPair(quizID, studentID)
	if err != nil {
		return nil, err
	}
	attemptNumber := int(count) + 1
	if quiz.MaxAttempts > 0 && attemptNumber > quiz.MaxAttempts {
		return nil, util.ErrMaxAttemptsExceeded
	}

	activeFlag := true
	attempt := &model.QuizAttempt{
		QuizID:        quizID,
		StudentID:     studentID,
		SchoolID:      schoolID,
		SessionID:     model.GenerateUUID(),
		AttemptNumber: attemptNumber,
		StartTime:     now,
		ExpiresAt:     attemptDeadline(quiz, now),
		LastActivity:  now,
		Status:        model.AttemptInProgress,
		Answers:       model.AnswerMap{},
		Active:        &activeFlag,
	}

	err = s.withRetry("attempt.create", func() error {
		return s.Attempts.Create(attempt)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发开始：另一请求先占了槽位，直接续用它
		winner, findErr := s.Attempts.FindActive(quizID, studentID)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, util.ErrQuizCompleted
		}
		return s.buildView(quiz, winner, studentID, true, now), nil
	}
	if err != nil {
		return nil, err
	}

	monitoring.QuizAttemptsTotal.WithLabelValues(quizID).Inc()
	return s.buildView(quiz, attempt, studentID, false, now), nil
}

// ResumeAttempt 只续答，不会新建：返回进行中 attempt 的会话、
// 剩余秒数和已保存的答案。没有进行中的 attempt 时返回 404，
// 发现已过期则顺手落库并按过期返回。
func (s *AttemptService) ResumeAttempt(ctx context.Context, quizID, studentID string) (*AttemptView, error) {
	quiz, err := s.Quizzes.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}

	active, err := s.Attempts.FindActive(quizID, studentID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, util.NewNotFoundError("attempt in progress")
	}
	now := time.Now()
	if active.Expired(now) {
		if _, err := s.finalizeExpired(ctx, quiz, active); err != nil {
			return nil, err
		}
		return nil, util.ErrAttemptExpired
	}
	return s.buildView(quiz, active, studentID, true, now), nil
}

func checkWindow(quiz *model.Quiz, now time.Time) error {
	if !quiz.IsPublished {
		return util.ErrQuizNotPublished
	}
	if quiz.StartTime != nil && now.Before(*quiz.StartTime) {
		return util.ErrQuizNotYetOpen
	}
	if quiz.DueDate != nil && now.After(*quiz.DueDate) {
		return util.ErrQuizClosed
	}
	return nil
}

// attemptDeadline 时限 > 0 按分钟计；否则退到截止时间或默认时长
func attemptDeadline(quiz *model.Quiz, now time.Time) time.Time {
	if quiz.TimeLimit > 0 {
		deadline := now.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		if quiz.DueDate != nil && quiz.DueDate.Before(deadline) {
			return *quiz.DueDate
		}
		return deadline
	}
	if quiz.DueDate != nil {
		return *quiz.DueDate
	}
	return now.Add(defaultAttemptDuration)
}

func (s *AttemptService) buildView(quiz *model.Quiz, attempt *model.QuizAttempt, studentID string, resumed bool, now time.Time) *AttemptView {
	return &AttemptView{
		SessionID:        attempt.SessionID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           attempt.Status.String(),
		StartTime:        attempt.StartTime,
		ExpiresAt:        attempt.ExpiresAt,
		RemainingSeconds: attempt.RemainingSeconds(now),
		Answers:          attempt.Answers,
		Resumed:          resumed,
		QuestionSet:      BuildStudentView(quiz, studentID),
	}
}

/* =========================================================
   答题进度
========================================================= */

func (s *AttemptService) SaveProgress(ctx context.Context, sessionID, studentID string, answers model.AnswerMap) (*model.QuizAttempt, error) {
	attempt, err := s.Attempts.FindBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.NewNotFoundError("attempt")
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAlreadySubmitted
	}

	now := time.Now()
	if attempt.Expired(now) {
		quiz, qerr := s.Quizzes.FindByID(attempt.QuizID)
		if qerr != nil {
			return nil, qerr
		}
		if _, ferr := s.finalizeExpired(ctx, quiz, attempt); ferr != nil {
			return nil, ferr
		}
		return nil, util.ErrAttemptExpired
	}

	mergeAnswers(attempt, answers)
	attempt.LastActivity = now
	if err := s.withRetry("attempt.save", func() error {
		return s.Attempts.Save(attempt)
	}); err != nil {
		return nil, err
	}
	return attempt, nil
}

// mergeAnswers 逐题合并，未提及的已答题保留
func mergeAnswers(attempt *model.QuizAttempt, answers model.AnswerMap) {
	if attempt.Answers == nil {
		attempt.Answers = model.AnswerMap{}
	}
	for key, value := range answers {
		if value == "" {
			delete(attempt.Answers, key)
			continue
		}
		attempt.Answers[key] = value
	}
}

/* =========================================================
   提交与判分
========================================================= */

// SubmitAttempt 提交答卷。auto 为客户端倒计时到点触发的自动交卷，
// 对已有成绩静默返回既有那份；手动重复提交返回冲突。超过截止加
// 宽限期的提交按过期处理，已保存的答案自动交卷。
func (s *AttemptService) SubmitAttempt(ctx context.Context, sessionID, studentID string, answers model.AnswerMap, auto bool) (*model.QuizResult, error) {
	attempt, err := s.Attempts.FindBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.NewNotFoundError("attempt")
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}

	if attempt.Status != model.AttemptInProgress {
		if !auto {
			return nil, util.ErrAlreadySubmitted
		}
		result, rerr := s.Results.FindByPair(attempt.QuizID, studentID)
		if rerr != nil {
			return nil, rerr
		}
		if result != nil {
			return result, nil
		}
		return nil, util.ErrAlreadySubmitted
	}

	quiz, err := s.Quizzes.FindByID(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}

	now := time.Now()
	if now.After(attempt.ExpiresAt.Add(s.Grace)) {
		result, ferr := s.finalizeExpired(ctx, quiz, attempt)
		if ferr != nil {
			return nil, ferr
		}
		if auto {
			return result, nil
		}
		return nil, util.ErrAttemptExpired
	}

	mergeAnswers(attempt, answers)
	attempt.Status = model.AttemptSubmitted
	return s.finalize(ctx, quiz, attempt, now)
}

// finalizeExpired 懒过期：把已保存的答案按自动交卷判分落库
func (s *AttemptService) finalizeExpired(ctx context.Context, quiz *model.Quiz, attempt *model.QuizAttempt) (*model.QuizResult, error) {
	if quiz == nil {
		return nil, util.NewNotFoundError("quiz")
	}
	s.Logger.Info("finalizing expired attempt",
		zap.String("session_id", attempt.SessionID),
		zap.String("quiz_id", attempt.QuizID),
		zap.String("student_id", attempt.StudentID))
	attempt.Status = model.AttemptExpired
	return s.finalize(ctx, quiz, attempt, time.Now())
}

func (s *AttemptService) finalize(ctx context.Context, quiz *model.Quiz, attempt *model.QuizAttempt, submittedAt time.Time) (*model.QuizResult, error) {
	start := time.Now()
	units := FlattenQuestionSet(quiz.QuestionSet)
	rows := GradeUnits(units, attempt.Answers)
	agg := AggregateResult(rows)
	monitoring.GradingDuration.Observe(time.Since(start).Seconds())

	result := &model.QuizResult{
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		SchoolID:      attempt.SchoolID,
		SessionID:     attempt.SessionID,
		AttemptNumber: attempt.AttemptNumber,
		Score:         agg.Score,
		TotalPoints:   agg.TotalPoints,
		Percentage:    agg.Percentage,
		Status:        agg.Status,
		AutoGraded:    agg.AutoGraded,
		SubmittedAt:   submittedAt,
	}

	err := s.withRetry("result.finalize", func() error {
		return s.Results.FinalizeAttempt(attempt, result, rows)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发提交：另一请求已落成绩，返回既有那份
		winner, findErr := s.Results.FindByPair(attempt.QuizID, attempt.StudentID)
		if findErr != nil {
			return nil, findErr
		}
		if winner != nil {
			return winner, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	monitoring.QuizSubmissionsTotal.WithLabelValues(attempt.Status.String()).Inc()
	s.invalidateResultCaches(ctx, result)

	if result.Status == model.ResultNeedsReview {
		s.Notifier.Notify([]string{quiz.TeacherID}, "Quiz needs review", quiz.Title, model.NotificationPayload{
			"quizId":   quiz.ID,
			"resultId": result.ID,
		})
	}
	return result, nil
}

func (s *AttemptService) invalidateResultCaches(ctx context.Context, result *model.QuizResult) {
	s.Cache.DeleteByPrefix(ctx, "result:quiz:"+result.QuizID)
	s.Cache.DeleteByPrefix(ctx, "result:student:"+result.StudentID)
}

/* =========================================================
   状态查询
========================================================= */

type CompletionStatus struct {
	Completed bool              `json:"completed"`
	Result    *model.QuizResult `json:"result,omitempty"`
}

func (s *AttemptService) CheckCompletion(ctx context.Context, quizID, studentID string) (*CompletionStatus, error) {
	result, err := s.Results.FindByPair(quizID, studentID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &CompletionStatus{Completed: false}, nil
	}
	return &CompletionStatus{Completed: true, Result: result}, nil
}

type InProgressStatus struct {
	InProgress       bool   `json:"inProgress"`
	SessionID        string `json:"sessionId,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

// CheckInProgress 查询是否有进行中的 attempt；发现过期顺手落库
func (s *AttemptService) CheckInProgress(ctx context.Context, quizID, studentID string) (*InProgressStatus, error) {
	attempt, err := s.Attempts.FindActive(quizID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return &InProgressStatus{InProgress: false}, nil
	}
	now := time.Now()
	if attempt.Expired(now) {
		quiz, qerr := s.Quizzes.FindByID(quizID)
		if qerr != nil {
			return nil, qerr
		}
		if _, ferr := s.finalizeExpired(ctx, quiz, attempt); ferr != nil {
			return nil, ferr
		}
		return &InProgressStatus{InProgress: false}, nil
	}
	return &InProgressStatus{
		InProgress:       true,
		SessionID:        attempt.SessionID,
		RemainingSeconds: attempt.RemainingSeconds(now),
	}, nil
}

/* =========================================================
   教师重置
========================================================= */

// ResetAttempt 清掉该学生此测验的 attempt 与成绩，放行重考
func (s *AttemptService) ResetAttempt(ctx context.Context, quizID, studentID, callerID string) error {
	quiz, err := s.Quizzes.FindByID(quizID)
	if err != nil {
		return err
	}
	if quiz == nil {
		return util.NewNotFoundError("quiz")
	}
	if quiz.TeacherID != callerID {
		return util.ErrPermissionDenied
	}

	if err := s.Results.ResetPair(quizID, studentID); err != nil {
		return err
	}
	s.Cache.DeleteByPrefix(ctx, "result:quiz:"+quizID)
	s.Cache.DeleteByPrefix(ctx, "result:student:"+studentID)

	s.Notifier.Notify([]string{studentID}, "Quiz attempt reset", quiz.Title, model.NotificationPayload{
		"quizId": quizID,
	})
	return nil
}
