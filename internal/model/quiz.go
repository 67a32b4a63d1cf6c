package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

/* =========================================================
   题型（tagged variant）
========================================================= */

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Cloze          QuestionType = "cloze"
	Essay          QuestionType = "essay"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) String() string { return string(t) }

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, Cloze, Essay, ShortAnswer:
		return true
	default:
		return false
	}
}

// AutoGradable 是否可以机器判分（essay/short_answer 需要人工批改）
func (t QuestionType) AutoGradable() bool {
	switch t {
	case MultipleChoice, TrueFalse, Cloze:
		return true
	default:
		return false
	}
}

const (
	// 客观题默认分值
	DefaultObjectivePoints = 1
	// 主观题（essay/short_answer）判分上限，评分时默认按满分分值计入总分
	ManualPointsMax = 5
)

/* =========================================================
   题目结构
========================================================= */

// ClozeBlank 完形填空中的一个空，每个空独立判分
type ClozeBlank struct {
	BlankNumber   int      `json:"blankNumber"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
	Points        int      `json:"points,omitempty"`
}

type Question struct {
	ID     string       `json:"id"`
	Type   QuestionType `json:"type"`
	Text   string       `json:"text"`
	Points int          `json:"points,omitempty"`

	// multiple_choice
	Options       []string `json:"options,omitempty"`
	CorrectOption string   `json:"correctOption,omitempty"`

	// true_false
	CorrectBoolean *bool `json:"correctBoolean,omitempty"`

	// cloze
	Blanks []ClozeBlank `json:"blanks,omitempty"`
}

type Section struct {
	Instruction string     `json:"instruction"`
	Questions   []Question `json:"questions"`
}

/* =========================================================
   QuestionSet：flat 或 sections，二者互斥
========================================================= */

type QuestionSetMode string

const (
	QuestionSetFlat      QuestionSetMode = "flat"
	QuestionSetSectioned QuestionSetMode = "sections"
)

type QuestionSet struct {
	Mode      QuestionSetMode `json:"mode"`
	Questions []Question      `json:"questions,omitempty"`
	Sections  []Section       `json:"sections,omitempty"`
}

func (qs QuestionSet) Value() (driver.Value, error) {
	return json.Marshal(qs)
}

func (qs *QuestionSet) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*qs = QuestionSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, qs)
	case string:
		return json.Unmarshal([]byte(v), qs)
	default:
		return fmt.Errorf("unsupported type for QuestionSet: %T", value)
	}
}

/* =========================================================
   MODEL: quizzes
========================================================= */

type Quiz struct {
	UUIDBase
	SchoolID    string `gorm:"index;type:varchar(36);not null" json:"schoolId"`
	ClassID     string `gorm:"index;type:varchar(36);not null" json:"classId"`
	TeacherID   string `gorm:"index;type:varchar(36);not null" json:"teacherId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	QuestionSet QuestionSet `gorm:"type:json" json:"questionSet"`

	ShuffleQuestions bool       `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleOptions   bool       `gorm:"default:false" json:"shuffleOptions"`
	TimeLimit        int        `gorm:"default:0" json:"timeLimit"` // Minutes
	StartTime        *time.Time `json:"startTime,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	MaxAttempts      int        `gorm:"default:1" json:"maxAttempts"`
	IsPublished      bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
