package entities

import "github.com/aarondl/null/v8"

type AnalysisType struct {
	ID          uint64      `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	Description null.String `db:"description" json:"description"`
	IsActive    bool        `db:"is_active" json:"is_active"`
}
