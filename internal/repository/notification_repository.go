package repository

import (
	"school_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	CreateBatch(notifications []model.Notification) error
	ListByRecipient(recipientID string, page, limit int) ([]model.Notification, int64, error)
	MarkRead(id uint, recipientID string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateBatch(notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.Create(&notifications).Error
}

func (r *notificationRepository) ListByRecipient(recipientID string, page, limit int) ([]model.Notification, int64, error) {
	var total int64
	query := r.db.Model(&model.Notification{}).Where("recipient_id = ?", recipientID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []model.Notification
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) MarkRead(id uint, recipientID string) error {
	return r.db.Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true).Error
}
