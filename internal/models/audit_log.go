package models

import "gorm.io/datatypes"

// AuditLog records an authentication or administration event.
type AuditLog struct {
	BaseModel

	UserID    *string `gorm:"size:36;index" json:"user_id"`
	Username  string  `gorm:"size:64;index" json:"username"`
	Action    string  `gorm:"size:64;not null;index" json:"action"`
	Resource  string  `gorm:"size:128;index" json:"resource"`
	Result    string  `gorm:"size:16;not null" json:"result"`
	IPAddress string  `gorm:"size:64" json:"ip_address"`
	UserAgent string  `json:"user_agent"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}
