package ble

import "time"

const (
	DemoServiceUUID       = "12345678-1234-1234-1234-123456789abc"
	DemoLEDCharUUID       = "87654321-4321-4321-4321-cba987654321"
	DemoWriteCharUUID     = "11111111-2222-3333-4444-555555555555"
	DemoSensorServiceUUID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	DemoSensorCharUUID    = "ffffffff-eeee-dddd-cccc-bbbbbbbbbbbb"
)

// DemoServices is the fixed GATT layout reported for any "connected" device.
func DemoServices() []Service {
	return []Service{
		{
			UUID: DemoServiceUUID,
			Characteristics: []Characteristic{
				{UUID: DemoLEDCharUUID, Properties: PropRead | PropWrite},
				{UUID: DemoWriteCharUUID, Properties: PropWrite},
			},
		},
		{
			UUID: DemoSensorServiceUUID,
			Characteristics: []Characteristic{
				{UUID: DemoSensorCharUUID, Properties: PropWriteWithoutResponse | PropWrite},
			},
		},
	}
}

// DemoDevices is returned by the device list while nothing has been saved.
func DemoDevices(now time.Time) []SavedDevice {
	ts := Millis(now)
	return []SavedDevice{
		{Name: "Demo Heart Rate Monitor", Address: "AA:BB:CC:DD:EE:FF", SavedAt: ts},
		{Name: "Demo Temperature Sensor", Address: "11:22:33:44:55:66", SavedAt: ts},
	}
}

// DemoCommands is returned by the command list while nothing has been saved.
func DemoCommands(now time.Time) []SavedCommand {
	ts := Millis(now)
	return []SavedCommand{
		{
			Name:               "Turn On LED",
			ServiceUUID:        DemoServiceUUID,
			CharacteristicUUID: DemoLEDCharUUID,
			Data:               "01",
			SavedAt:            ts,
		},
		{
			Name:               "Get Temperature",
			ServiceUUID:        DemoSensorServiceUUID,
			CharacteristicUUID: DemoSensorCharUUID,
			Data:               "TEMP",
			SavedAt:            ts,
		},
	}
}

// DemoWiFiStatus is the station-mode snapshot reported in demo mode.
func DemoWiFiStatus() WiFiStatus {
	return WiFiStatus{
		IsAPMode:      false,
		WiFiConnected: true,
		CurrentSSID:   "Demo-Network",
		IPAddress:     "127.0.0.1",
		APIP:          "",
	}
}
