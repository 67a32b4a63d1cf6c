package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

/* =========================================================
   ENUM-like: Result Status ('submitted','needs_review','graded')
========================================================= */

type ResultStatus string

const (
	ResultSubmitted   ResultStatus = "submitted"
	ResultNeedsReview ResultStatus = "needs_review"
	ResultGraded      ResultStatus = "graded"
)

func (s ResultStatus) String() string { return string(s) }

func (s ResultStatus) Valid() bool {
	switch s {
	case ResultSubmitted, ResultNeedsReview, ResultGraded:
		return true
	default:
		return false
	}
}

func (s *ResultStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		*s = ResultStatus(v)
	case []byte:
		*s = ResultStatus(string(v))
	default:
		return fmt.Errorf("unsupported type for ResultStatus: %T", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid ResultStatus: %q", *s)
	}
	return nil
}

func (s ResultStatus) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ResultStatus: %q", s)
	}
	return string(s), nil
}

/* =========================================================
   MODEL: quiz_results
   (quiz_id, student_id) 唯一：同一学生同一测验只有一份成绩，
   成绩一旦存在即永久阻止新的 attempt。
========================================================= */

type QuizResult struct {
	UUIDBase
	QuizID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_result_pair,priority:1;index" json:"quizId"`
	StudentID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_result_pair,priority:2;index" json:"studentId"`
	SchoolID  string `gorm:"index;type:varchar(36);not null" json:"schoolId"`
	SessionID string `gorm:"type:varchar(36)" json:"sessionId"`

	AttemptNumber int          `gorm:"default:1" json:"attemptNumber"`
	Score         *int         `json:"score"`                       // 人工批改未完成时为 null
	TotalPoints   int          `gorm:"default:0" json:"totalPoints"`
	Percentage    *float64     `json:"percentage"`                  // score 为 null 时同样为 null
	Status        ResultStatus `gorm:"size:20;default:'submitted'" json:"status"`
	AutoGraded    bool         `gorm:"default:false" json:"autoGraded"`
	SubmittedAt   time.Time    `json:"submittedAt"`

	Questions []ResultQuestion `gorm:"foreignKey:ResultID" json:"questions,omitempty"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}

/* =========================================================
   MODEL: quiz_result_questions
   每个展平判分单元一行。cloze 的每个空存独立一行（显式带
   blank_number），不靠行数分组反推题型。
========================================================= */

type ResultQuestion struct {
	UUIDBase
	ResultID    string       `gorm:"index;type:varchar(36);not null" json:"resultId"`
	QuestionID  string       `gorm:"index;type:varchar(36);not null" json:"questionId"`
	BlankNumber *int         `json:"blankNumber,omitempty"` // 仅 cloze 行
	Type        QuestionType `gorm:"size:30;not null" json:"questionType"`

	SelectedAnswer string `gorm:"type:text" json:"selectedAnswer"`
	CorrectAnswer  string `gorm:"type:text" json:"correctAnswer,omitempty"`

	Points               int    `gorm:"default:1" json:"points"`
	EarnedPoints         *int   `json:"earnedPoints"` // 待人工批改时为 null
	IsCorrect            *bool  `json:"isCorrect"`    // 主观题无对错概念，保持 null
	ManualReviewRequired bool   `gorm:"default:false" json:"manualReviewRequired"`
	Feedback             string `gorm:"type:text" json:"feedback"`
}

func (ResultQuestion) TableName() string {
	return "quiz_result_questions"
}

// PendingManual 该单元是否还在等待人工批改
func (q *ResultQuestion) PendingManual() bool {
	return q.ManualReviewRequired && q.EarnedPoints == nil
}
