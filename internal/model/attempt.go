package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

/* =========================================================
   ENUM-like: Attempt Status ('in_progress','submitted','expired')
========================================================= */

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptInProgress, AttemptSubmitted, AttemptExpired:
		return true
	default:
		return false
	}
}

func (s *AttemptStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		*s = AttemptStatus(v)
	case []byte:
		*s = AttemptStatus(string(v))
	default:
		return fmt.Errorf("unsupported type for AttemptStatus: %T", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid AttemptStatus: %q", *s)
	}
	return nil
}

func (s AttemptStatus) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AttemptStatus: %q", s)
	}
	return string(s), nil
}

/* =========================================================
   答案映射：key 为题目ID，cloze 空为 "<题目ID>-<空序号>"
========================================================= */

type AnswerMap map[string]string

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		m = AnswerMap{}
	}
	return json.Marshal(m)
}

func (m *AnswerMap) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = AnswerMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for AnswerMap: %T", value)
	}
}

/* =========================================================
   MODEL: quiz_attempts
   约束：Active 仅在 in_progress 时为 true，终态置 NULL，
   (quiz_id, student_id, active) 唯一索引保证同一学生同一测验
   最多一个进行中的 attempt。
========================================================= */

type QuizAttempt struct {
	UUIDBase
	QuizID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_active_slot,priority:1;index" json:"quizId"`
	StudentID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_active_slot,priority:2;index" json:"studentId"`
	SchoolID  string `gorm:"index;type:varchar(36);not null" json:"schoolId"`
	SessionID string `gorm:"uniqueIndex;type:varchar(36);not null" json:"sessionId"`

	AttemptNumber int           `gorm:"default:1" json:"attemptNumber"`
	StartTime     time.Time     `json:"startTime"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	LastActivity  time.Time     `json:"lastActivity"`
	Status        AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	Answers       AnswerMap     `gorm:"type:json" json:"answers"`

	Active *bool `gorm:"uniqueIndex:idx_attempt_active_slot,priority:3" json:"-"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Expired 是否已过截止时刻（懒检测，无后台清理任务）
func (a *QuizAttempt) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// RemainingSeconds 剩余作答秒数，过期返回 0
func (a *QuizAttempt) RemainingSeconds(now time.Time) int {
	remaining := int(a.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
