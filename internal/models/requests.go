package models

import "encoding/json"

// SettingUpdate is the PATCH body for one setting.
type SettingUpdate struct {
	Value json.RawMessage `json:"value"`
}

// PinRequest carries a PIN, either to unlock or to configure the lock.
type PinRequest struct {
	Pin string `json:"pin"`
}

// PinResult is the response to a PIN submission.
type PinResult struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ProfileCreate is the POST body for saving the current configuration.
type ProfileCreate struct {
	Name        string `json:"name"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// ProfileRename is the PUT body for overwriting a profile.
type ProfileRename struct {
	Name string `json:"name"`
}
