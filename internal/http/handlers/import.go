package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/service"
)

// ImportHandler handles CSV statement uploads.
type ImportHandler struct {
	importSvc *service.ImportService
}

// NewImportHandler creates a new import handler.
func NewImportHandler(importSvc *service.ImportService) *ImportHandler {
	return &ImportHandler{importSvc: importSvc}
}

// ImportInput is a raw CSV upload. The body is the file content.
type ImportInput struct {
	Filename string `query:"filename" maxLength:"255" doc:"Original file name, used to label the source"`
	RawBody  []byte `contentType:"text/csv" doc:"CSV file content"`
}

// ImportOutput reports what the import did.
type ImportOutput struct {
	Body service.ImportResult
}

// Import parses an uploaded CSV, deduplicates rows, and stores the
// resulting transactions.
func (h *ImportHandler) Import(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("empty upload")
	}

	result, err := h.importSvc.Import(ctx, userID, input.Filename, input.RawBody)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("import failed")
	}
	return &ImportOutput{Body: *result}, nil
}
