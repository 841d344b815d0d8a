package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// FailureReport is an operator-visible record of something the pipeline skipped.
type FailureReport struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Kind      enums.ReportKind `gorm:"column:kind;not null"`
	Subject   string           `gorm:"column:subject;not null"`
	Message   string           `gorm:"column:message;not null"`
	Details   json.RawMessage  `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time        `gorm:"column:created_at;not null"`
}

func (FailureReport) TableName() string { return "failure_reports" }
