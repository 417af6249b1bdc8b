package models

import "gorm.io/datatypes"

// PolicyEffect is the outcome a policy applies to a grant.
type PolicyEffect string

const (
	EffectAllow PolicyEffect = "ALLOW"
	EffectDeny  PolicyEffect = "DENY"
)

// Valid reports whether the effect is one of the supported values.
func (e PolicyEffect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Policy is an ALLOW/DENY rule with optional attribute conditions. Conditions
// are stored as an opaque JSON predicate; evaluation is delegated to an
// injectable matcher so the predicate language can be swapped out.
type Policy struct {
	BaseModel

	Code        string `gorm:"not null;uniqueIndex:idx_policies_code_tenant" json:"code"`
	TenantID    string `gorm:"type:uuid;not null;uniqueIndex:idx_policies_code_tenant;index" json:"tenant_id"`
	LandlordID  string `gorm:"type:uuid;not null;index" json:"landlord_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Effect     PolicyEffect   `gorm:"not null;default:ALLOW" json:"effect"`
	Actions    datatypes.JSON `json:"actions"`
	Resources  datatypes.JSON `json:"resources"`
	Conditions datatypes.JSON `json:"conditions"`
}
