package enums

import "fmt"

// ComplianceFlag enumerates the reasons an order is held in compliance review.
type ComplianceFlag string

const (
	ComplianceFlagNPIUnverified       ComplianceFlag = "npi_unverified"
	ComplianceFlagDEAUnverified       ComplianceFlag = "dea_unverified"
	ComplianceFlagStateRestricted     ComplianceFlag = "state_restricted"
	ComplianceFlagPrescriptionMissing ComplianceFlag = "prescription_missing"
	ComplianceFlagLicenseExpired      ComplianceFlag = "license_expired"
)

var validComplianceFlags = []ComplianceFlag{
	ComplianceFlagNPIUnverified,
	ComplianceFlagDEAUnverified,
	ComplianceFlagStateRestricted,
	ComplianceFlagPrescriptionMissing,
	ComplianceFlagLicenseExpired,
}

// String implements fmt.Stringer.
func (c ComplianceFlag) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ComplianceFlag.
func (c ComplianceFlag) IsValid() bool {
	for _, candidate := range validComplianceFlags {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseComplianceFlag converts raw input into a ComplianceFlag.
func ParseComplianceFlag(value string) (ComplianceFlag, error) {
	for _, candidate := range validComplianceFlags {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid compliance flag %q", value)
}
