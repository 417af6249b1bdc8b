package models

// User describes an account that can hold roles and permissions inside
// tenants. Membership is recorded through association facts, never through
// live object references.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	DisplayName string `json:"display_name"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}
