package models

import "time"

// SecurityEvent is an audit record for security-signal outcomes: fingerprint
// mismatches, CSRF rejections, and revocations. These are distinguished from
// ordinary not-found outcomes because they may indicate an attack.
type SecurityEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventType string    `gorm:"index;size:64" json:"event_type"`
	UserID    string    `gorm:"index;size:64" json:"user_id,omitempty"`
	SessionID string    `gorm:"size:64" json:"session_id,omitempty"`
	IPAddress string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"size:512" json:"user_agent,omitempty"`
	Detail    string    `gorm:"size:1024" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the audit table name stable across GORM naming strategies.
func (SecurityEvent) TableName() string {
	return "security_events"
}
