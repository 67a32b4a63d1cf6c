package repository

import (
	"errors"
	"school_quiz_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QuizRepository interface {
	Create(quiz *model.Quiz) error
	Save(quiz *model.Quiz) error
	Delete(id string) error
	FindByID(id string) (*model.Quiz, error)
	SetPublished(id string, publish bool, at *time.Time) error
	ListByClass(schoolID, classID string, page, limit int) ([]model.Quiz, int64, error)
	ListBySchool(schoolID string, page, limit int) ([]model.Quiz, int64, error)
}

type quizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) Create(quiz *model.Quiz) error {
	return r.db.Create(quiz).Error
}

func (r *quizRepository) Save(quiz *model.Quiz) error {
	return r.db.Save(quiz).Error
}

// Delete 连同该测验的 attempt、成绩及判分明细一起删除
func (r *quizRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var resultIDs []string
		if err := tx.Model(&model.QuizResult{}).Where("quiz_id = ?", id).Pluck("id", &resultIDs).Error; err == nil && len(resultIDs) > 0 {
			if err := tx.Where("result_id IN ?", resultIDs).Delete(&model.ResultQuestion{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizAttempt{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Quiz{}, "id = ?", id).Error
	})
}

func (r *quizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.db.First(&quiz, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quiz, nil
}

func (r *quizRepository) SetPublished(id string, publish bool, at *time.Time) error {
	return r.db.Model(&model.Quiz{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_published": publish,
			"published_at": at,
		}).Error
}

func (r *quizRepository) ListByClass(schoolID, classID string, page, limit int) ([]model.Quiz, int64, error) {
	var total int64
	query := r.db.Model(&model.Quiz{}).Where("school_id = ? AND class_id = ?", schoolID, classID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var quizzes []model.Quiz
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&quizzes).Error
	return quizzes, total, err
}

func (r *quizRepository) ListBySchool(schoolID string, page, limit int) ([]model.Quiz, int64, error) {
	var total int64
	query := r.db.Model(&model.Quiz{}).Where("school_id = ?", schoolID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var quizzes []model.Quiz
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&quizzes).Error
	return quizzes, total, err
}
