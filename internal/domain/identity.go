package domain

const (
	RoleAdmin     = "admin"
	RoleClinician = "clinician"
)

// Identity is the authenticated caller attached to each request.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the identity may read the given job: the
// requesting owner or an administrator, nobody else.
func (i Identity) CanAccess(job *Job) bool {
	if job == nil {
		return false
	}
	return i.IsAdmin() || (i.UserID != "" && i.UserID == job.RequestedBy)
}
