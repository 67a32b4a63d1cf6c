package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type NotificationPayload map[string]any

func (p NotificationPayload) Value() (driver.Value, error) {
	if p == nil {
		p = NotificationPayload{}
	}
	return json.Marshal(p)
}

func (p *NotificationPayload) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*p = NotificationPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported type for NotificationPayload: %T", value)
	}
}

// Notification 异步投递的站内通知，尽力而为，不保证送达
type Notification struct {
	BaseModel
	RecipientID string              `gorm:"index;type:varchar(36);not null" json:"recipientId"`
	Title       string              `gorm:"size:255;not null" json:"title"`
	Body        string              `gorm:"type:text" json:"body"`
	Payload     NotificationPayload `gorm:"type:json" json:"payload"`
	IsRead      bool                `gorm:"default:false" json:"isRead"`
}

func (Notification) TableName() string {
	return "notifications"
}
