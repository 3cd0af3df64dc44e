package repository

import "context"

// DirectoryRepository resolves tenants and employee display names. Tenancy
// itself (auth, company resolution) is handled upstream; this is only the
// lookup the orchestrator needs for validation and progress labels.
type DirectoryRepository interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)

	// EmployeeNames returns display names keyed by employee id. Unknown
	// ids are simply absent from the result; callers fall back to the id.
	EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error)
}
