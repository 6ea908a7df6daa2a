package model

import "time"

// UserRef is the minimal user reference stored on membership records.
type UserRef struct {
	ID       string `json:"_id" bson:"_id"`
	Username string `json:"username" bson:"username"`
}

// TeamMember links a user to a team with optional team-scoped roles.
type TeamMember struct {
	ID        string    `json:"_id" bson:"_id"`
	TeamID    string    `json:"teamId" bson:"teamId"`
	UserID    string    `json:"userId" bson:"userId"`
	Roles     []string  `json:"roles,omitempty" bson:"roles,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	CreatedBy UserRef   `json:"createdBy" bson:"createdBy"`
	UpdatedAt time.Time `json:"_updatedAt,omitempty" bson:"_updatedAt,omitempty"`
}

// SetKey sets the database key for this membership.
func (m *TeamMember) SetKey(key string) {
	m.ID = IDFromKey(PrefixTeamMember, key)
}

// GetKey returns the database key for this membership.
func (m *TeamMember) GetKey() string {
	return GenerateKey(PrefixTeamMember, m.ID)
}

// HasRole reports whether the member holds role.
func (m *TeamMember) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRoles adds roles not already present, keeping the existing order.
func (m *TeamMember) AddRoles(roles ...string) {
	for _, role := range roles {
		if !m.HasRole(role) {
			m.Roles = append(m.Roles, role)
		}
	}
}

// RemoveRoles drops every listed role.
func (m *TeamMember) RemoveRoles(roles ...string) {
	drop := make(map[string]bool, len(roles))
	for _, r := range roles {
		drop[r] = true
	}
	kept := m.Roles[:0]
	for _, r := range m.Roles {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	m.Roles = kept
}
