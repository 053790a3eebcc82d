package models

import (
	"time"
)

// DeviceStatus is the operational status of a managed firewall.
type DeviceStatus string

const (
	DeviceStatusActive   DeviceStatus = "active"
	DeviceStatusInactive DeviceStatus = "inactive"
	DeviceStatusOffline  DeviceStatus = "offline"
)

// Device represents a managed firewall appliance registered for monitoring.
// The registry owns the row; the polling engine only reads it and updates
// LastSeenAt.
type Device struct {
	ID                string       `json:"id"`
	TenantID          string       `json:"tenant_id"`
	SerialNumber      string       `json:"serial_number,omitempty"`
	ManagementAddress string       `json:"management_address"`
	Username          string       `json:"username"`
	EncryptedPassword string       `json:"-"`
	Status            DeviceStatus `json:"status"`
	LastSeenAt        *time.Time   `json:"last_seen_at,omitempty"`
}
