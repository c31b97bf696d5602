// internal/models/user.go
package models

// User is the identity record referenced by listings, orders and
// reviews. Registration and credential handling live in the external
// identity provider; this table only mirrors what it issues.
type User struct {
	BaseModel
	Email string   `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Name  string   `json:"name" gorm:"size:255;not null"`
	Role  UserRole `json:"role" gorm:"type:varchar(20);not null;default:'buyer';index"`
}
