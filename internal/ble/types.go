// Package ble holds the data shapes the simulated controller exposes over
// its JSON API: saved devices and commands, the GATT service listing and the
// WiFi status snapshot.
package ble

import "time"

// SavedDevice is a peripheral the user bookmarked from a scan.
type SavedDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	SavedAt int64  `json:"saved_at"`
}

// SavedCommand is a named characteristic write the UI can replay.
type SavedCommand struct {
	Name               string `json:"name"`
	ServiceUUID        string `json:"serviceUUID"`
	CharacteristicUUID string `json:"characteristicUUID"`
	Data               string `json:"data"`
	SavedAt            int64  `json:"saved_at"`
}

// Properties is the GATT characteristic properties bitmask.
type Properties uint8

const (
	PropBroadcast            Properties = 0x01
	PropRead                 Properties = 0x02
	PropWriteWithoutResponse Properties = 0x04
	PropWrite                Properties = 0x08
	PropNotify               Properties = 0x10
	PropIndicate             Properties = 0x20
)

type Characteristic struct {
	UUID       string     `json:"uuid"`
	Properties Properties `json:"properties"`
}

type Service struct {
	UUID            string           `json:"uuid"`
	Characteristics []Characteristic `json:"characteristics"`
}

// WiFiStatus mirrors the controller's network state. The demo never runs in
// AP mode unless configured to.
type WiFiStatus struct {
	IsAPMode      bool   `json:"isAPMode"`
	WiFiConnected bool   `json:"wifiConnected"`
	CurrentSSID   string `json:"currentSSID"`
	IPAddress     string `json:"ipAddress"`
	APIP          string `json:"apIP"`
}

// Millis converts t to the integer millisecond timestamps stored in saved_at.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
