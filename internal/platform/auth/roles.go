package auth

// Role names as stored on user records and carried in session tokens.
const (
	RoleAdmin      = "Admin"
	RoleDoctor     = "Doctor"
	RoleTechnician = "Technician"
	RoleStaff      = "Staff"
	RolePatient    = "Patient"
)

var roleLevels = map[string]int{
	RoleAdmin:      4,
	RoleDoctor:     3,
	RoleTechnician: 2,
	RoleStaff:      2,
	RolePatient:    1,
}

// AllRoles lists the valid roles from most to least privileged.
func AllRoles() []string {
	return []string{RoleAdmin, RoleDoctor, RoleTechnician, RoleStaff, RolePatient}
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// HasRolePermission compares hierarchy levels. Unknown roles rank 0.
func HasRolePermission(userRole, requiredRole string) bool {
	return roleLevels[userRole] >= roleLevels[requiredRole]
}

// HomePath is the landing page a client should open after sign-in.
func HomePath(role string) string {
	switch role {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleDoctor:
		return "/doctor/dashboard"
	case RoleTechnician, RoleStaff:
		return "/staff/dashboard"
	case RolePatient:
		return "/patient/portal"
	default:
		return "/login"
	}
}

// Staff-side role groups used by route registration.
var (
	LabRoles      = []string{RoleTechnician, RoleStaff}
	ClinicalRoles = []string{RoleTechnician, RoleStaff, RoleDoctor}
)
