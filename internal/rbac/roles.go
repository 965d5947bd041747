package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleViewer can search retailers and read job progress.
	RoleViewer = "viewer"
	// RoleOperator can also place calls.
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// All lists every known role.
var All = []string{RoleViewer, RoleOperator, RoleAdmin}

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnown(role string) bool {
	for _, r := range All {
		if r == role {
			return true
		}
	}
	return false
}
