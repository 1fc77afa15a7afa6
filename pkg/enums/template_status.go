package enums

// TemplateStatus mirrors the provider tournament status on a contest template.
type TemplateStatus string

const (
	TemplateStatusScheduled TemplateStatus = "SCHEDULED"
	TemplateStatusCancelled TemplateStatus = "CANCELLED"
)

func (s TemplateStatus) IsValid() bool {
	return s == TemplateStatusScheduled || s == TemplateStatusCancelled
}
