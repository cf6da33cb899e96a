package models

import (
	"time"

	"gorm.io/datatypes"
)

// BootstrapAdminSlot marks the single admin created by first-time setup. The unique
// index on AdminSlot makes a second bootstrap admin impossible at the store level.
const BootstrapAdminSlot = "bootstrap"

// SecurityAnswers maps a question key to the bcrypt hash of its normalised answer.
type SecurityAnswers map[string]string

// User is a panel account. Admins, sub-admins and regular users share the table.
type User struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`

	SecurityQuestions datatypes.JSONType[SecurityAnswers] `json:"-"`

	// TOTPSecret holds the AES-GCM encrypted base32 secret, pending or active.
	TOTPSecret  string `json:"-"`
	TOTPEnabled bool   `gorm:"default:false" json:"totp_enabled"`

	IsAdmin   bool    `gorm:"default:false" json:"is_admin"`
	AdminSlot *string `gorm:"uniqueIndex;size:32" json:"-"`

	IsSubAdmin    bool                                  `gorm:"default:false" json:"is_sub_admin"`
	ParentAdminID *string                               `gorm:"size:36;index" json:"parent_admin_id,omitempty"`
	Permissions   datatypes.JSONType[ServerPermissions] `json:"permissions"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// Answers returns the stored answer hashes, never nil.
func (u *User) Answers() SecurityAnswers {
	answers := u.SecurityQuestions.Data()
	if answers == nil {
		return SecurityAnswers{}
	}
	return answers
}

// Grants returns the per-server action grants, never nil.
func (u *User) Grants() ServerPermissions {
	grants := u.Permissions.Data()
	if grants == nil {
		return ServerPermissions{}
	}
	return grants
}

// IsBootstrapAdmin reports whether the user occupies the bootstrap admin slot.
func (u *User) IsBootstrapAdmin() bool {
	return u.AdminSlot != nil && *u.AdminSlot == BootstrapAdminSlot
}
