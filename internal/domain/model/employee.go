package model

type EmployeeStatus string

const (
	EmployeeStatusPending    EmployeeStatus = "pending"
	EmployeeStatusProcessing EmployeeStatus = "processing"
	EmployeeStatusCompleted  EmployeeStatus = "completed"
	EmployeeStatusFailed     EmployeeStatus = "failed"
)

// EmployeeUnit is the per-employee slice of work within a job. It is
// derived while the job runs and is not persisted beyond the audit trail;
// a completed or failed unit never changes status again.
type EmployeeUnit struct {
	EmployeeID string
	Name       string
	Status     EmployeeStatus
	Error      string
}

func (u *EmployeeUnit) Terminal() bool {
	return u.Status == EmployeeStatusCompleted || u.Status == EmployeeStatusFailed
}
