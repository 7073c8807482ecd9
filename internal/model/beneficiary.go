package model

type Beneficiary struct {
	Base
	Name       string `db:"name" json:"name"`
	DocumentID string `db:"document_id" json:"document_id"`
	Needs      string `db:"needs" json:"needs"`
}

type CreateBeneficiaryRequest struct {
	Name       string `json:"name" binding:"required"`
	DocumentID string `json:"document_id" binding:"required"`
	Needs      string `json:"needs"`
}

type UpdateBeneficiaryRequest struct {
	Name       *string `json:"name"`
	DocumentID *string `json:"document_id"`
	Needs      *string `json:"needs"`
}

type BeneficiaryFilters struct {
	Pagination
	SearchTerm string `json:"search_term" form:"search_term"`
}
