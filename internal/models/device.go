package models

import "time"

// DeviceType identifies the biometric modality of an external scanner.
type DeviceType string

const (
	DeviceFingerprint DeviceType = "FINGERPRINT"
	DeviceFace        DeviceType = "FACE"
	DeviceIris        DeviceType = "IRIS"
	DeviceVoice       DeviceType = "VOICE"
)

// DeviceStatus is the last reported availability of a device.
type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "ONLINE"
	DeviceOffline     DeviceStatus = "OFFLINE"
	DeviceMaintenance DeviceStatus = "MAINTENANCE"
)

// DeviceRecord describes an external biometric scanner registered with
// the service. Status is updated by periodic sync from the device side;
// the core only stores the record shape and feeds the online count into
// dashboard stats.
type DeviceRecord struct {
	ID       string       `json:"id"`
	Type     DeviceType   `json:"type"`
	Location string       `json:"location"`
	Status   DeviceStatus `json:"status"`
	LastSync time.Time    `json:"last_sync"`
}
