package model

import "time"

// HandoffRecord is one append-only entry of the stage audit trail: the
// transition of an employee from one stage to the next within a job.
// ToStage is empty on a terminal record. Terminal records additionally
// carry the employee's outcome, and the stage error text when the outcome
// is failed, so the trail alone tells how each employee ended.
type HandoffRecord struct {
	ID         string
	JobID      string
	EmployeeID string
	FromStage  string
	ToStage    string
	Outcome    EmployeeStatus
	Error      string
	Timestamp  time.Time
}

// Terminal reports whether this record closed out its employee.
func (r *HandoffRecord) Terminal() bool { return r.Outcome != "" }
