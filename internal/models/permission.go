package models

// Permission is an (action, resource) capability pair owned by a landlord.
// The pair is unique within the landlord.
type Permission struct {
	BaseModel

	Action     string `gorm:"not null;uniqueIndex:idx_permissions_action_resource_landlord" json:"action"`
	Resource   string `gorm:"not null;uniqueIndex:idx_permissions_action_resource_landlord" json:"resource"`
	LandlordID string `gorm:"type:uuid;not null;uniqueIndex:idx_permissions_action_resource_landlord;index" json:"landlord_id"`

	// DefaultPolicyID is consulted by grants with inherit_default_policy set
	// and no explicit policy of their own.
	DefaultPolicyID *string `gorm:"type:uuid" json:"default_policy_id,omitempty"`
	DefaultPolicy   *Policy `gorm:"foreignKey:DefaultPolicyID" json:"default_policy,omitempty"`
}

// Display returns the canonical "action:resource" string for the permission.
func (p *Permission) Display() string {
	return p.Action + ":" + p.Resource
}
