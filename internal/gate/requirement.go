package gate

// Requirement describes who may pass the gate.
type Requirement struct {
	// Roles, when non-empty, requires the claim to hold at least one of them.
	Roles []string
}

// AnyAuthenticated admits every caller holding a valid claim.
func AnyAuthenticated() Requirement {
	return Requirement{}
}

// RequireRoles admits callers holding at least one of roles.
func RequireRoles(roles ...string) Requirement {
	return Requirement{Roles: roles}
}
