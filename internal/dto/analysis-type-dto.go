package dto

type CreateAnalysisTypeDTO struct {
	Code        string  `json:"code" validate:"required,min=1,max=20"`
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty"`
}

type UpdateAnalysisTypeDTO struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}
