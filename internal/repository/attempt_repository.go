package repository

import (
	"errors"
	"school_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository interface {
	// Create 依赖 (quiz_id, student_id, active) 唯一索引；
	// 槽位已被占用时返回 gorm.ErrDuplicatedKey，由调用方转为 resume。
	Create(attempt *model.QuizAttempt) error
	FindActive(quizID, studentID string) (*model.QuizAttempt, error)
	FindBySession(sessionID string) (*model.QuizAttempt, error)
	Save(attempt *model.QuizAttempt) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) FindActive(quizID, studentID string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.db.
		Where("quiz_id = ? AND student_id = ? AND active = ?", quizID, studentID, true).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindBySession(sessionID string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.db.Where("session_id = ?", sessionID).First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) Save(attempt *model.QuizAttempt) error {
	return r.db.Save(attempt).Error
}
