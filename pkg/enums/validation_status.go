package enums

// ValidationStatus marks whether an ingested snapshot passed shape validation.
type ValidationStatus string

const (
	ValidationStatusValid   ValidationStatus = "VALID"
	ValidationStatusInvalid ValidationStatus = "INVALID"
)
