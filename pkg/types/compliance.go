package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloxrx/veloxrx-backend/pkg/enums"
)

// ComplianceRecord is the order-owned result of the last compliance gate
// evaluation. Flags record every failing check, not just the first.
type ComplianceRecord struct {
	NPIVerified          bool                   `json:"npi_verified"`
	DEAVerified          bool                   `json:"dea_verified"`
	StateCompliant       bool                   `json:"state_compliant"`
	PrescriptionRequired bool                   `json:"prescription_required"`
	PrescriptionProvided bool                   `json:"prescription_provided"`
	CheckedBy            *uuid.UUID             `json:"checked_by,omitempty"`
	CheckedAt            *time.Time             `json:"checked_at,omitempty"`
	Notes                *string                `json:"notes,omitempty"`
	Flags                []enums.ComplianceFlag `json:"flags,omitempty"`
}

// Passed reports whether the last evaluation cleared every check.
func (c ComplianceRecord) Passed() bool {
	return len(c.Flags) == 0 && c.CheckedAt != nil
}
