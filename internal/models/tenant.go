package models

import "gorm.io/datatypes"

// Tenant is an isolated customer scope under a landlord. Roles and permissions
// used inside a tenant must share the tenant's landlord; that invariant is
// enforced at write time by the association store, not only by foreign keys.
type Tenant struct {
	BaseModel

	Name        string         `gorm:"not null;index" json:"name"`
	Description string         `json:"description"`
	Domain      string         `gorm:"index" json:"domain"`
	Config      datatypes.JSON `json:"config"`

	LandlordID string `gorm:"type:uuid;not null;index" json:"landlord_id"`
}
