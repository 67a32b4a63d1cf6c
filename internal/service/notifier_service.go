package service

import (
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/pkg/logger"

	"go.uber.org/zap"
)

// Notifier 尽力而为的异步通知，绝不阻塞调用方，也不保证送达
type Notifier interface {
	Notify(recipientIDs []string, title, body string, payload model.NotificationPayload)
	// NotifyClass 面向整个班级的广播。学生名册在上游身份服务，
	// 这里不展开成员，只落一条以班级为收件通道的通知行。
	NotifyClass(classID, title, body string, payload model.NotificationPayload)
}

type NotifierService struct {
	Repo repository.NotificationRepository
}

func NewNotifierService(repo repository.NotificationRepository) *NotifierService {
	return &NotifierService{Repo: repo}
}

func (s *NotifierService) Notify(recipientIDs []string, title, body string, payload model.NotificationPayload) {
	if len(recipientIDs) == 0 {
		return
	}
	notifications := make([]model.Notification, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		notifications = append(notifications, model.Notification{
			RecipientID: id,
			Title:       title,
			Body:        body,
			Payload:     payload,
		})
	}
	// 异步投递，失败只记日志
	go func() {
		if err := s.Repo.CreateBatch(notifications); err != nil {
			logger.Log.Warn("notification delivery failed",
				zap.String("title", title),
				zap.Int("recipients", len(recipientIDs)),
				zap.Error(err))
		}
	}()
}

func (s *NotifierService) NotifyClass(classID, title, body string, payload model.NotificationPayload) {
	if classID == "" {
		return
	}
	s.Notify([]string{"class:" + classID}, title, body, payload)
}
