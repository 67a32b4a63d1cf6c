package service

import (
	"context"
	"school_quiz_backend/internal/model"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testLogger() *zap.Logger { return zap.NewNop() }

// 内存版仓储，模拟关键的唯一约束语义，供服务层测试使用

type memQuizRepo struct {
	mu      sync.Mutex
	quizzes map[string]*model.Quiz
}

func newMemQuizRepo() *memQuizRepo {
	return &memQuizRepo{quizzes: map[string]*model.Quiz{}}
}

func (r *memQuizRepo) Create(quiz *model.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	copied := *quiz
	r.quizzes[quiz.ID] = &copied
	return nil
}

func (r *memQuizRepo) Save(quiz *model.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *quiz
	r.quizzes[quiz.ID] = &copied
	return nil
}

func (r *memQuizRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.quizzes, id)
	return nil
}

func (r *memQuizRepo) FindByID(id string) (*model.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, nil
	}
	copied := *quiz
	return &copied, nil
}

func (r *memQuizRepo) SetPublished(id string, published bool, publishedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quiz, ok := r.quizzes[id]; ok {
		quiz.IsPublished = published
		quiz.PublishedAt = publishedAt
	}
	return nil
}

func (r *memQuizRepo) ListByClass(schoolID, classID string, page, limit int) ([]model.Quiz, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Quiz
	for _, quiz := range r.quizzes {
		if quiz.SchoolID == schoolID && quiz.ClassID == classID {
			out = append(out, *quiz)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memQuizRepo) ListBySchool(schoolID string, page, limit int) ([]model.Quiz, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Quiz
	for _, quiz := range r.quizzes {
		if quiz.SchoolID == schoolID {
			out = append(out, *quiz)
		}
	}
	return out, int64(len(out)), nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.QuizAttempt // sessionID 为键
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{attempts: map[string]*model.QuizAttempt{}}
}

func (r *memAttemptRepo) Create(attempt *model.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.QuizID == attempt.QuizID &&
			existing.StudentID == attempt.StudentID &&
			existing.Active != nil && *existing.Active {
			return gorm.ErrDuplicatedKey
		}
	}
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	copied := *attempt
	r.attempts[attempt.SessionID] = &copied
	return nil
}

func (r *memAttemptRepo) FindActive(quizID, studentID string) (*model.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.StudentID == studentID &&
			attempt.Active != nil && *attempt.Active {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memAttemptRepo) FindBySession(sessionID string) (*model.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *attempt
	return &copied, nil
}

func (r *memAttemptRepo) Save(attempt *model.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *attempt
	r.attempts[attempt.SessionID] = &copied
	return nil
}

type memResultRepo struct {
	mu        sync.Mutex
	results   map[string]*model.QuizResult // resultID 为键
	questions map[string][]model.ResultQuestion
	attempts  *memAttemptRepo
}

func newMemResultRepo(attempts *memAttemptRepo) *memResultRepo {
	return &memResultRepo{
		results:   map[string]*model.QuizResult{},
		questions: map[string][]model.ResultQuestion{},
		attempts:  attempts,
	}
}

func (r *memResultRepo) FindByPair(quizID, studentID string) (*model.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findPairLocked(quizID, studentID), nil
}

func (r *memResultRepo) findPairLocked(quizID, studentID string) *model.QuizResult {
	for _, result := range r.results {
		if result.QuizID == quizID && result.StudentID == studentID {
			copied := *result
			return &copied
		}
	}
	return nil
}

func (r *memResultRepo) FindByID(id string) (*model.QuizResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok {
		return nil, nil
	}
	copied := *result
	return &copied, nil
}

func (r *memResultRepo) CountForPair(quizID, studentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findPairLocked(quizID, studentID) != nil {
		return 1, nil
	}
	return 0, nil
}

func (r *memResultRepo) FinalizeAttempt(attempt *model.QuizAttempt, result *model.QuizResult, questions []model.ResultQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findPairLocked(result.QuizID, result.StudentID) != nil {
		return gorm.ErrDuplicatedKey
	}
	if result.ID == "" {
		result.ID = model.GenerateUUID()
	}
	rows := make([]model.ResultQuestion, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			q.ID = model.GenerateUUID()
		}
		q.ResultID = result.ID
		rows[i] = q
	}
	copied := *result
	r.results[result.ID] = &copied
	r.questions[result.ID] = rows

	if stored, ok := r.attempts.attempts[attempt.SessionID]; ok {
		stored.Status = attempt.Status
		stored.Answers = attempt.Answers
		stored.Active = nil
	}
	return nil
}

func (r *memResultRepo) ListQuestions(resultID string) ([]model.ResultQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.questions[resultID]
	out := make([]model.ResultQuestion, len(rows))
	copy(out, rows)
	return out, nil
}

func (r *memResultRepo) UpdateGraded(result *model.QuizResult, questions []model.ResultQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.results[result.ID]; ok {
		stored.Score = result.Score
		stored.Percentage = result.Percentage
		stored.Status = result.Status
		stored.TotalPoints = result.TotalPoints
	}
	rows := r.questions[result.ID]
	for _, updated := range questions {
		for i := range rows {
			if rows[i].ID == updated.ID {
				rows[i].EarnedPoints = updated.EarnedPoints
				rows[i].IsCorrect = updated.IsCorrect
				rows[i].Feedback = updated.Feedback
			}
		}
	}
	return nil
}

func (r *memResultRepo) ListByQuiz(quizID string, page, limit int) ([]model.QuizResult, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QuizResult
	for _, result := range r.results {
		if result.QuizID == quizID {
			out = append(out, *result)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memResultRepo) ListByStudent(studentID string, page, limit int) ([]model.QuizResult, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QuizResult
	for _, result := range r.results {
		if result.StudentID == studentID {
			out = append(out, *result)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memResultRepo) ResetPair(quizID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, result := range r.results {
		if result.QuizID == quizID && result.StudentID == studentID {
			delete(r.results, id)
			delete(r.questions, id)
		}
	}
	for session, attempt := range r.attempts.attempts {
		if attempt.QuizID == quizID && attempt.StudentID == studentID {
			delete(r.attempts.attempts, session)
		}
	}
	return nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string, dest any) bool { return false }

func (noopCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {}

func (noopCache) Delete(ctx context.Context, keys ...string) {}

func (noopCache) DeleteByPrefix(ctx context.Context, prefix string) {}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(recipientIDs []string, title, body string, payload model.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) NotifyClass(classID, title, body string, payload model.NotificationPayload) {
	n.Notify([]string{"class:" + classID}, title, body, payload)
}
