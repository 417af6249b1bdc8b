package models

// Role is a named bundle of permissions defined at landlord scope and used at
// tenant scope. The owning landlord is referenced by id only; traversals back
// into the landlord's collections go through store queries.
type Role struct {
	BaseModel

	Code        string  `gorm:"not null;uniqueIndex:idx_roles_code_landlord" json:"code"`
	LandlordID  string  `gorm:"type:uuid;not null;uniqueIndex:idx_roles_code_landlord;index" json:"landlord_id"`
	TenantID    *string `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description"`

	Grants []RolePermissionPolicy `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"grants,omitempty"`
}
