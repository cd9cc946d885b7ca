package enums

import "fmt"

// ControlledSchedule is the DEA schedule for controlled substances.
type ControlledSchedule string

const (
	ControlledScheduleI   ControlledSchedule = "I"
	ControlledScheduleII  ControlledSchedule = "II"
	ControlledScheduleIII ControlledSchedule = "III"
	ControlledScheduleIV  ControlledSchedule = "IV"
	ControlledScheduleV   ControlledSchedule = "V"
)

var validControlledSchedules = []ControlledSchedule{
	ControlledScheduleI,
	ControlledScheduleII,
	ControlledScheduleIII,
	ControlledScheduleIV,
	ControlledScheduleV,
}

// String implements fmt.Stringer.
func (c ControlledSchedule) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ControlledSchedule.
func (c ControlledSchedule) IsValid() bool {
	for _, candidate := range validControlledSchedules {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseControlledSchedule converts raw input into a ControlledSchedule.
func ParseControlledSchedule(value string) (ControlledSchedule, error) {
	for _, candidate := range validControlledSchedules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid controlled schedule %q", value)
}
