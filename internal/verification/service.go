package verification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloxrx/veloxrx-backend/pkg/db"
	"github.com/veloxrx/veloxrx-backend/pkg/db/models"
	"github.com/veloxrx/veloxrx-backend/pkg/enums"
	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
	"github.com/veloxrx/veloxrx-backend/pkg/types"
	"github.com/veloxrx/veloxrx-backend/pkg/validate"
)

var (
	npiPattern = regexp.MustCompile(`^\d{10}$`)
	deaPattern = regexp.MustCompile(`^[A-Z]{2}\d{7}$`)
)

// Service is the prescriber credential registry. Verification is a review
// workflow: unverified/failed -> pending -> verified/failed. Nothing here
// talks to external credential authorities; reviewers record outcomes.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Prescriber, error)
	GetPrescriber(ctx context.Context, id uuid.UUID) (*models.Prescriber, error)
	GetByNPI(ctx context.Context, npi string) (*models.Prescriber, error)
	AddLicense(ctx context.Context, prescriberID uuid.UUID, input LicenseInput) (*models.PrescriberLicense, error)
	AttachDocument(ctx context.Context, prescriberID uuid.UUID, doc types.DocumentRef) error
	Submit(ctx context.Context, prescriberID uuid.UUID) error
	Review(ctx context.Context, prescriberID uuid.UUID, outcome enums.VerificationStatus, reviewerID uuid.UUID, notes string) (*models.Prescriber, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RegisterInput carries the credential fields for a new prescriber.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	NPINumber string `json:"npi_number" validate:"required"`
	DEANumber string `json:"dea_number" validate:"required"`
}

// LicenseInput is one state medical license to put on file.
type LicenseInput struct {
	Number     string    `json:"number" validate:"required"`
	State      string    `json:"state" validate:"required,len=2"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// NewService builds the verification registry service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("verification repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Prescriber, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	npi := strings.TrimSpace(input.NPINumber)
	dea := strings.ToUpper(strings.TrimSpace(input.DEANumber))
	if !npiPattern.MatchString(npi) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "npi must be exactly 10 digits").
			WithDetails(map[string]string{"npi_number": "must be exactly 10 digits"})
	}
	if !deaPattern.MatchString(dea) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dea must be 2 letters followed by 7 digits").
			WithDetails(map[string]string{"dea_number": "must be 2 letters followed by 7 digits"})
	}

	if _, err := s.repo.FindByNPI(ctx, npi); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "npi already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check npi")
	}

	prescriber := &models.Prescriber{
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		NPINumber: npi,
		DEANumber: dea,
		Status:    enums.VerificationStatusUnverified,
	}
	created, err := s.repo.Create(ctx, prescriber)
	if err != nil {
		// the pre-check races with concurrent registrations
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "npi already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create prescriber")
	}
	return created, nil
}

func (s *service) GetPrescriber(ctx context.Context, id uuid.UUID) (*models.Prescriber, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prescriber id required")
	}
	prescriber, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescriber not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup prescriber")
	}
	return prescriber, nil
}

func (s *service) GetByNPI(ctx context.Context, npi string) (*models.Prescriber, error) {
	npi = strings.TrimSpace(npi)
	if !npiPattern.MatchString(npi) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "npi must be exactly 10 digits")
	}
	prescriber, err := s.repo.FindByNPI(ctx, npi)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescriber not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup prescriber")
	}
	return prescriber, nil
}

func (s *service) AddLicense(ctx context.Context, prescriberID uuid.UUID, input LicenseInput) (*models.PrescriberLicense, error) {
	if prescriberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prescriber id required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.ExpiryDate.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license expiry must be in the future").
			WithDetails(map[string]string{"expiry_date": "must be in the future"})
	}

	if _, err := s.GetPrescriber(ctx, prescriberID); err != nil {
		return nil, err
	}

	license := &models.PrescriberLicense{
		PrescriberID: prescriberID,
		Number:       strings.TrimSpace(input.Number),
		State:        strings.ToUpper(strings.TrimSpace(input.State)),
		ExpiryDate:   input.ExpiryDate,
	}
	created, err := s.repo.CreateLicense(ctx, license)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
	}
	return created, nil
}

func (s *service) AttachDocument(ctx context.Context, prescriberID uuid.UUID, doc types.DocumentRef) error {
	if strings.TrimSpace(doc.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "document reference required")
	}
	prescriber, err := s.GetPrescriber(ctx, prescriberID)
	if err != nil {
		return err
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = s.now()
	}
	prescriber.Documents = append(prescriber.Documents, doc)
	if err := s.repo.Update(ctx, prescriber); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach document")
	}
	return nil
}

func (s *service) Submit(ctx context.Context, prescriberID uuid.UUID) error {
	prescriber, err := s.GetPrescriber(ctx, prescriberID)
	if err != nil {
		return err
	}
	if prescriber.Status != enums.VerificationStatusUnverified && prescriber.Status != enums.VerificationStatusFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "submission only allowed from unverified or failed")
	}
	if len(prescriber.Documents) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one credential document required")
	}
	now := s.now()
	hasValidLicense := false
	for _, license := range prescriber.Licenses {
		if !license.Expired(now) {
			hasValidLicense = true
			break
		}
	}
	if !hasValidLicense {
		return pkgerrors.New(pkgerrors.CodeValidation, "an unexpired state license is required")
	}

	if err := s.repo.UpdateFields(ctx, prescriber.ID, map[string]any{
		"status":       enums.VerificationStatusPending,
		"submitted_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit for review")
	}
	return nil
}

func (s *service) Review(ctx context.Context, prescriberID uuid.UUID, outcome enums.VerificationStatus, reviewerID uuid.UUID, notes string) (*models.Prescriber, error) {
	if reviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id required")
	}
	if outcome != enums.VerificationStatusVerified && outcome != enums.VerificationStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review outcome must be verified or failed")
	}
	prescriber, err := s.GetPrescriber(ctx, prescriberID)
	if err != nil {
		return nil, err
	}
	if prescriber.Status != enums.VerificationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "review only allowed while pending")
	}

	now := s.now()
	fields := map[string]any{
		"status":      outcome,
		"reviewed_by": reviewerID,
		"reviewed_at": now,
	}
	if strings.TrimSpace(notes) != "" {
		fields["notes"] = strings.TrimSpace(notes)
	}
	if err := s.repo.UpdateFields(ctx, prescriber.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review outcome")
	}

	prescriber.Status = outcome
	prescriber.ReviewedBy = &reviewerID
	prescriber.ReviewedAt = &now
	return prescriber, nil
}

// CurrentlyValid reports whether the prescriber may be relied upon right now:
// verified status plus at least one unexpired license. An expired license is
// never valid regardless of status.
func CurrentlyValid(prescriber models.Prescriber, now time.Time) bool {
	if prescriber.Status != enums.VerificationStatusVerified {
		return false
	}
	for _, license := range prescriber.Licenses {
		if !license.Expired(now) {
			return true
		}
	}
	return false
}

// HasUnexpiredLicense reports whether any license on file covers the given
// state as of now.
func HasUnexpiredLicense(prescriber models.Prescriber, state string, now time.Time) bool {
	state = strings.ToUpper(strings.TrimSpace(state))
	for _, license := range prescriber.Licenses {
		if license.State == state && !license.Expired(now) {
			return true
		}
	}
	return false
}
