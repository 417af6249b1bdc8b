package models

import "gorm.io/datatypes"

// Landlord is the root of the ownership hierarchy. Every tenant, role,
// permission and policy belongs to exactly one landlord.
type Landlord struct {
	BaseModel

	Name   string         `gorm:"uniqueIndex;not null" json:"name"`
	Config datatypes.JSON `json:"config"`

	Tenants     []Tenant     `gorm:"foreignKey:LandlordID;constraint:OnDelete:CASCADE" json:"tenants,omitempty"`
	Roles       []Role       `gorm:"foreignKey:LandlordID;constraint:OnDelete:CASCADE" json:"roles,omitempty"`
	Permissions []Permission `gorm:"foreignKey:LandlordID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
}
