package models

import (
	"time"
)

// Profile is the marketplace-facing identity record for one account.
// Credential handling lives with the identity provider; the profile only
// carries the role and display attributes the storefront needs.
type Profile struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Email     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Role      Role      `gorm:"type:varchar(10);not null;index" json:"role"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone"`
	Address   string    `gorm:"type:varchar(255)" json:"address"`
	FarmName  string    `gorm:"type:varchar(100)" json:"farm_name,omitempty"`
	Location  string    `gorm:"type:varchar(100)" json:"location,omitempty"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// Session identifies the authenticated caller for the duration of a request.
// It is passed explicitly to the cart engine and order manager rather than
// held in ambient state.
type Session struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
