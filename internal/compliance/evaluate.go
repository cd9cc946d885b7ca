package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
	"github.com/veloxrx/veloxrx-backend/internal/verification"
)

// Snapshot is everything the gate inspects for one order, captured at
// evaluation time.
type Snapshot struct {
	Products     []models.Product
	Prescriber   *models.Prescriber
	ShipState    string
	Prescription types.PrescriptionEvidence
	CheckedBy    *uuid.UUID
	Now          time.Time
}

// EvaluateSnapshot runs every check and records every failure, not just the
// first. The returned record is what gets persisted on the order.
func EvaluateSnapshot(snap Snapshot) types.ComplianceRecord {
	now := snap.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	record := types.ComplianceRecord{
		CheckedBy: snap.CheckedBy,
		CheckedAt: &now,
	}

	prescriberValid := false
	licenseExpiredOnly := false
	if snap.Prescriber != nil {
		prescriberValid = verification.CurrentlyValid(*snap.Prescriber, now)
		if !prescriberValid && snap.Prescriber.Status == enums.VerificationStatusVerified {
			// Verified on paper but every license has lapsed.
			licenseExpiredOnly = true
		}
	}

	record.NPIVerified = prescriberValid
	if !prescriberValid {
		if licenseExpiredOnly {
			record.Flags = append(record.Flags, enums.ComplianceFlagLicenseExpired)
		} else {
			record.Flags = append(record.Flags, enums.ComplianceFlagNPIUnverified)
		}
	}

	anyControlled := false
	prescriptionRequired := false
	stateRestricted := false
	for _, product := range snap.Products {
		if product.Controlled {
			anyControlled = true
		}
		if product.PrescriptionRequired {
			prescriptionRequired = true
		}
		if snap.ShipState != "" && product.RestrictedIn(snap.ShipState) {
			stateRestricted = true
		}
	}

	record.DEAVerified = prescriberValid
	if anyControlled && !prescriberValid {
		record.Flags = append(record.Flags, enums.ComplianceFlagDEAUnverified)
	}

	record.StateCompliant = !stateRestricted
	if stateRestricted {
		record.Flags = append(record.Flags, enums.ComplianceFlagStateRestricted)
	}

	record.PrescriptionRequired = prescriptionRequired
	record.PrescriptionProvided = snap.Prescription.Provided
	if prescriptionRequired && !snap.Prescription.Provided {
		record.Flags = append(record.Flags, enums.ComplianceFlagPrescriptionMissing)
	}

	return record
}

// BlockingError converts a failed record into a single coded error carrying
// one cause per flag.
func BlockingError(record types.ComplianceRecord) error {
	if record.Passed() {
		return nil
	}
	var combined error
	for _, flag := range record.Flags {
		combined = multierr.Append(combined, fmt.Errorf("compliance check failed: %s", flag))
	}
	if combined == nil {
		combined = fmt.Errorf("compliance record never evaluated")
	}
	return pkgerrors.Wrap(pkgerrors.CodeComplianceBlocked, combined, "order blocked by compliance gate").
		WithDetails(map[string]any{"flags": record.Flags})
}
