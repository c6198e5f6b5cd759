package dto

import (
	"time"

	"lab-request-system/internal/entities"
)

type CreateRequestDTO struct {
	CompoundName    string   `json:"compound_name" validate:"required,min=1,max=200"`
	AnalysisTypeIDs []uint64 `json:"analysis_type_ids" validate:"required,min=1,dive,gt=0"`
	Priority        string   `json:"priority,omitempty" validate:"omitempty,priority"`
	DueDate         string   `json:"due_date" validate:"required,datetime=2006-01-02"`
	Description     *string  `json:"description,omitempty"`
	ChemistComments *string  `json:"chemist_comments,omitempty"`
}

// AnalystUpdateDTO carries the processor-side mutations: reassignment,
// status transitions and the analyst's comment.
type AnalystUpdateDTO struct {
	AnalystID       *uint64 `json:"analyst_id,omitempty" validate:"omitempty,gt=0"`
	Status          *string `json:"status,omitempty" validate:"omitempty,request_status"`
	AnalystComments *string `json:"analyst_comments,omitempty"`
}

// ChemistUpdateDTO carries the submitter-side edits. A nil AnalysisTypeIDs
// leaves the type selection untouched; a non-nil list replaces it wholesale.
type ChemistUpdateDTO struct {
	CompoundName    *string  `json:"compound_name,omitempty" validate:"omitempty,min=1,max=200"`
	AnalysisTypeIDs []uint64 `json:"analysis_type_ids,omitempty" validate:"omitempty,min=1,dive,gt=0"`
	Priority        *string  `json:"priority,omitempty" validate:"omitempty,priority"`
	DueDate         *string  `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description     *string  `json:"description,omitempty"`
	ChemistComments *string  `json:"chemist_comments,omitempty"`
}

type RequestDTO struct {
	ID              uint64                  `json:"id"`
	RequestNumber   string                  `json:"request_number"`
	ChemistID       uint64                  `json:"chemist_id"`
	AnalystID       *uint64                 `json:"analyst_id,omitempty"`
	CompoundName    string                  `json:"compound_name"`
	AnalysisTypes   []entities.AnalysisType `json:"analysis_types"`
	Priority        string                  `json:"priority"`
	DueDate         string                  `json:"due_date"`
	Status          string                  `json:"status"`
	Description     *string                 `json:"description,omitempty"`
	ChemistComments *string                 `json:"chemist_comments,omitempty"`
	AnalystComments *string                 `json:"analyst_comments,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	ChemistName     string                  `json:"chemist_name"`
	AnalystName     *string                 `json:"analyst_name,omitempty"`
	ResultFiles     []ResultFileDTO         `json:"result_files,omitempty"`
}

type RequestListFilter struct {
	Page     int
	PageSize int
	Status   string
	Priority string
	// AnalystID filters by assignment; zero means "unassigned only",
	// matching the original API.
	AnalystID *uint64
	ChemistID uint64
}
