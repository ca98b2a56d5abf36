package api

import "github.com/starford/jotter/internal/models"

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Text string   `json:"text" example:"buy milk" validate:"required"`
	Tags []string `json:"tags" example:"home,todo"`
}

// UpdateRecordRequest is a partial update. Absent fields are left unchanged.
type UpdateRecordRequest struct {
	Text    *string   `json:"text,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
	Deleted *bool     `json:"deleted,omitempty"`
}

// CreateRecordResponse is returned by POST /records.
type CreateRecordResponse struct {
	ID     int           `json:"id" example:"3" validate:"required"`
	Record models.Record `json:"record" validate:"required"`
}

// RecordListResponse wraps a filtered listing.
type RecordListResponse struct {
	Records []models.Record `json:"records" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// UndoResponse describes what an undo reverted.
type UndoResponse struct {
	Summary string `json:"summary" example:"undone remove_record"`
}
