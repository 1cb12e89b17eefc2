package model

// Principal is the identity resolved from a verified access token. It is only
// ever constructed by token verification.
type Principal struct {
	AccountID string
	Email     string
	Role      Role
}

// Is reports whether the principal holds one of roles.
func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
