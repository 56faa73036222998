package dto

import (
	"errors"
	"mime/multipart"
)

// ProcessRequest represents an incoming batch of challan PDFs.
type ProcessRequest struct {
	Files []*multipart.FileHeader `form:"files[]" binding:"required"`
}

// Validate performs basic validation on the request.
func (r *ProcessRequest) Validate() error {
	if len(r.Files) == 0 {
		return ErrNoFiles
	}
	for _, f := range r.Files {
		if f.Size == 0 {
			return errors.New("empty file: " + f.Filename)
		}
	}
	return nil
}
