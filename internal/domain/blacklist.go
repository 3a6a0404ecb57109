package domain

import "time"

// IdentifierType distinguishes what kind of identifier is blacklisted.
type IdentifierType string

const (
	IdentifierUPI      IdentifierType = "upi"
	IdentifierPhone    IdentifierType = "phone"
	IdentifierDeviceID IdentifierType = "device_id"
	IdentifierEmail    IdentifierType = "email"
	IdentifierIP       IdentifierType = "ip_address"
)

// Valid reports whether t is a known identifier type.
func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierUPI, IdentifierPhone, IdentifierDeviceID, IdentifierEmail, IdentifierIP:
		return true
	}
	return false
}

// BlacklistEntry marks an identifier as previously reported fraudulent.
// Keyed by (Identifier, IdentifierType); repeat reports increment
// ReportCount rather than creating duplicates.
type BlacklistEntry struct {
	ID             string         `json:"id"`
	Identifier     string         `json:"identifier"`
	IdentifierType IdentifierType `json:"identifierType"`
	Reason         string         `json:"reason"`
	Severity       Severity       `json:"severity"`
	ReportedBy     string         `json:"reportedBy,omitempty"`
	ReportCount    int            `json:"reportCount"`
	IsActive       bool           `json:"isActive"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Expired reports whether the entry has lapsed at the given instant.
// Entries without an expiry never expire.
func (e *BlacklistEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
