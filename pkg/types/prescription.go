package types

import (
	"time"

	"github.com/google/uuid"
)

// DocumentRef is the opaque handle returned by the external document store.
// The core persists the reference only, never file content.
type DocumentRef struct {
	Reference  string    `json:"reference"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PrescriptionEvidence is the order-owned record of prescription documents.
type PrescriptionEvidence struct {
	Required   bool       `json:"required"`
	Provided   bool       `json:"provided"`
	Reference  string     `json:"reference,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
	VerifiedBy *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}
