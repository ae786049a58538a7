package types

// Staff roles
const (
	RoleSystemAdmin         = "system-admin"
	RoleStudentServiceAdmin = "student-service-admin"
	RoleLecturer            = "lecturer"
)

// Roles lists staff roles in display order.
var Roles = []string{RoleSystemAdmin, RoleStudentServiceAdmin, RoleLecturer}

var roleLabels = map[string]string{
	RoleSystemAdmin:         "System Administrator",
	RoleStudentServiceAdmin: "Student Service Administrator",
	RoleLecturer:            "Lecturer",
}

// RoleLabel returns the display label for a role, or the role itself if unknown.
func RoleLabel(role string) string {
	if label, ok := roleLabels[role]; ok {
		return label
	}
	return role
}

// IsRole reports whether role is a known staff role.
func IsRole(role string) bool {
	_, ok := roleLabels[role]
	return ok
}
