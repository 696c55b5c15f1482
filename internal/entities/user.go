package entities

// Role represents an admin role holding a set of permissions
type Role struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// User represents the admin user an ability is generated for
type User struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Roles     []Role `json:"roles,omitempty"`
}

// RoleIDs returns the IDs of the user's roles
func (u *User) RoleIDs() []int64 {
	if u == nil {
		return nil
	}
	ids := make([]int64, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// ToMap returns the user as a plain map (used by declarative conditions)
func (u *User) ToMap() map[string]any {
	if u == nil {
		return map[string]any{}
	}
	roles := make([]any, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, map[string]any{"id": r.ID, "code": r.Code, "name": r.Name})
	}
	return map[string]any{
		"id":        u.ID,
		"firstname": u.Firstname,
		"lastname":  u.Lastname,
		"username":  u.Username,
		"email":     u.Email,
		"roles":     roles,
	}
}
