package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"lab-request-system/pkg/constants"
)

type AnalysisRequest struct {
	ID              uint64                  `db:"id"`
	RequestNumber   string                  `db:"request_number"`
	ChemistID       uint64                  `db:"chemist_id"`
	AnalystID       null.Uint64             `db:"analyst_id"`
	CompoundName    string                  `db:"compound_name"`
	Priority        constants.Priority      `db:"priority"`
	DueDate         time.Time               `db:"due_date"`
	Status          constants.RequestStatus `db:"status"`
	Description     null.String             `db:"description"`
	ChemistComments null.String             `db:"chemist_comments"`
	AnalystComments null.String             `db:"analyst_comments"`
	CreatedAt       time.Time               `db:"created_at"`
	UpdatedAt       time.Time               `db:"updated_at"`
	CompletedAt     null.Time               `db:"completed_at"`
}
