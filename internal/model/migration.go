package model

import "time"

// MigrationControlID is the id of the single migration control document.
const MigrationControlID = "control"

// MigrationControl records the applied schema version and the run lock.
type MigrationControl struct {
	ID       string    `json:"_id" bson:"_id"`
	Version  int       `json:"version" bson:"version"`
	Locked   bool      `json:"locked" bson:"locked"`
	LockedAt time.Time `json:"lockedAt,omitempty" bson:"lockedAt,omitempty"`
	BuildAt  time.Time `json:"buildAt,omitempty" bson:"buildAt,omitempty"`
}

// SetKey sets the database key for the control record.
func (c *MigrationControl) SetKey(key string) {
	c.ID = IDFromKey(PrefixMigration, key)
}

// GetKey returns the database key for the control record.
func (c *MigrationControl) GetKey() string {
	return GenerateKey(PrefixMigration, MigrationControlID)
}
