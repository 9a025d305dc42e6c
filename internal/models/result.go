package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ResponseLog is one transcribed turn persisted to Postgres. The embedding
// is best-effort; rows without one are still valid.
type ResponseLog struct {
	ID            string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID     string          `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Part          string          `gorm:"column:part;type:text" json:"part"`
	QuestionIndex int             `gorm:"column:question_index;type:integer" json:"question_index"`
	Transcript    string          `gorm:"column:transcript;type:text" json:"transcript"`
	Confidence    float64         `gorm:"column:confidence;type:double precision" json:"confidence"`
	Embedding     pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`
	Metadata      datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ResponseLog) TableName() string { return "response_logs" }

// EvaluationResult is the evaluator's verdict for one session: per-part and
// overall band scores plus qualitative feedback.
type EvaluationResult struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	TestID    string `gorm:"column:test_id;type:text;index" json:"test_id"`

	OverallBand float64        `gorm:"column:overall_band;type:double precision" json:"overall_band"`
	PartBands   datatypes.JSON `gorm:"column:part_bands;type:jsonb" json:"part_bands"` // {"1":6.5,"2":6.0,"3":7.0}

	Fluency       string `gorm:"column:fluency;type:text" json:"fluency"`
	Lexical       string `gorm:"column:lexical;type:text" json:"lexical"`
	Grammar       string `gorm:"column:grammar;type:text" json:"grammar"`
	Pronunciation string `gorm:"column:pronunciation;type:text" json:"pronunciation"`

	Strengths    pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements"`

	// RawFeedback keeps the evaluator payload verbatim for the report view.
	RawFeedback datatypes.JSON `gorm:"column:raw_feedback;type:jsonb" json:"raw_feedback"`

	// ReportID is the backend-assigned identifier returned when the result
	// was persisted upstream.
	ReportID string `gorm:"column:report_id;type:text" json:"report_id"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (EvaluationResult) TableName() string { return "evaluation_results" }

// Evaluation is the wire-level verdict before persistence.
type Evaluation struct {
	OverallBand   float64            `json:"overall_band"`
	PartBands     map[string]float64 `json:"part_bands"`
	Fluency       string             `json:"fluency"`
	Lexical       string             `json:"lexical"`
	Grammar       string             `json:"grammar"`
	Pronunciation string             `json:"pronunciation"`
	Strengths     []string           `json:"strengths"`
	Improvements  []string           `json:"improvements"`
}
