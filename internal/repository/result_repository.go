package repository

import (
	"errors"
	"school_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository interface {
	FindByPair(quizID, studentID string) (*model.QuizResult, error)
	FindByID(id string) (*model.QuizResult, error)
	CountForPair(quizID, studentID string) (int64, error)
	// FinalizeAttempt 在一个事务里落终态：attempt 状态更新 + 成绩
	// 及判分明细创建。并发提交触发 (quiz_id, student_id) 唯一约束时
	// 返回 gorm.ErrDuplicatedKey，整个事务回滚。
	FinalizeAttempt(attempt *model.QuizAttempt, result *model.QuizResult, questions []model.ResultQuestion) error
	ListQuestions(resultID string) ([]model.ResultQuestion, error)
	// UpdateGraded 人工批改后保存重算过的聚合值和明细行
	UpdateGraded(result *model.QuizResult, questions []model.ResultQuestion) error
	ListByQuiz(quizID string, page, limit int) ([]model.QuizResult, int64, error)
	ListByStudent(studentID string, page, limit int) ([]model.QuizResult, int64, error)
	// ResetPair 教师重置：删除该学生此测验的 attempt、成绩与明细
	ResetPair(quizID, studentID string) error
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) FindByPair(quizID, studentID string) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.db.Where("quiz_id = ? AND student_id = ?", quizID, studentID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *resultRepository) FindByID(id string) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.db.First(&result, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *resultRepository) CountForPair(quizID, studentID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.QuizResult{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return count, err
}

func (r *resultRepository) FinalizeAttempt(attempt *model.QuizAttempt, result *model.QuizResult, questions []model.ResultQuestion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].ResultID = result.ID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.QuizAttempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]interface{}{
				"status":  attempt.Status,
				"answers": attempt.Answers,
				"active":  nil,
			}).Error
	})
}

func (r *resultRepository) ListQuestions(resultID string) ([]model.ResultQuestion, error) {
	var questions []model.ResultQuestion
	err := r.db.Where("result_id = ?", resultID).
		Order("created_at asc, blank_number asc").
		Find(&questions).Error
	return questions, err
}

func (r *resultRepository) UpdateGraded(result *model.QuizResult, questions []model.ResultQuestion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := range questions {
			if err := tx.Model(&model.ResultQuestion{}).
				Where("id = ?", questions[i].ID).
				Updates(map[string]interface{}{
					"earned_points": questions[i].EarnedPoints,
					"is_correct":    questions[i].IsCorrect,
					"feedback":      questions[i].Feedback,
				}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.QuizResult{}).
			Where("id = ?", result.ID).
			Updates(map[string]interface{}{
				"score":        result.Score,
				"percentage":   result.Percentage,
				"status":       result.Status,
				"total_points": result.TotalPoints,
			}).Error
	})
}

func (r *resultRepository) ListByQuiz(quizID string, page, limit int) ([]model.QuizResult, int64, error) {
	var total int64
	query := r.db.Model(&model.QuizResult{}).Where("quiz_id = ?", quizID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []model.QuizResult
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc").Offset(offset).Limit(limit).Find(&results).Error
	return results, total, err
}

func (r *resultRepository) ListByStudent(studentID string, page, limit int) ([]model.QuizResult, int64, error) {
	var total int64
	query := r.db.Model(&model.QuizResult{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []model.QuizResult
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc").Offset(offset).Limit(limit).Find(&results).Error
	return results, total, err
}

func (r *resultRepository) ResetPair(quizID, studentID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var resultIDs []string
		if err := tx.Model(&model.QuizResult{}).
			Where("quiz_id = ? AND student_id = ?", quizID, studentID).
			Pluck("id", &resultIDs).Error; err == nil && len(resultIDs) > 0 {
			if err := tx.Unscoped().Where("result_id IN ?", resultIDs).Delete(&model.ResultQuestion{}).Error; err != nil {
				return err
			}
		}
		// 物理删除：软删除的行仍占用 (quiz_id, student_id) 与
		// (quiz_id, student_id, active) 唯一索引，会卡死重考
		if err := tx.Unscoped().Where("quiz_id = ? AND student_id = ?", quizID, studentID).
			Delete(&model.QuizResult{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("quiz_id = ? AND student_id = ?", quizID, studentID).
			Delete(&model.QuizAttempt{}).Error
	})
}
