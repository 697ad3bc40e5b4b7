// Package device holds the static capability model for LEGO peripherals: the
// device id registry, per-device capability profiles with their dataset
// shapes and legal mode combinations, and the value decode routines driven by
// that metadata.
package device

// Device ids reported by hubs in attach events.
const (
	IDWedoMotor          uint16 = 0x0001
	IDTrainMotor         uint16 = 0x0002
	IDButton             uint16 = 0x0005
	IDLight              uint16 = 0x0008
	IDVoltage            uint16 = 0x0014
	IDCurrent            uint16 = 0x0015
	IDPiezoTone          uint16 = 0x0016
	IDRGBLight           uint16 = 0x0017
	IDExternalTilt       uint16 = 0x0022
	IDMotionSensor       uint16 = 0x0023
	IDVisionSensor       uint16 = 0x0025
	IDExternalMotor      uint16 = 0x0026
	IDInternalMotor      uint16 = 0x0027
	IDInternalTilt       uint16 = 0x0028
	IDDuploTrainMotor    uint16 = 0x0029
	IDDuploSpeaker       uint16 = 0x002A
	IDDuploVision        uint16 = 0x002B
	IDDuploSpeedometer   uint16 = 0x002C
	IDTechnicLargeMotor  uint16 = 0x002E
	IDTechnicXLMotor     uint16 = 0x002F
	IDHubIMUGesture      uint16 = 0x0036
	IDRemoteButtons      uint16 = 0x0037
	IDRemoteSignalLevel  uint16 = 0x0038
	IDHubIMUAccelerometer uint16 = 0x0039
	IDHubIMUGyro         uint16 = 0x003A
	IDHubIMUPosition     uint16 = 0x003B
	IDHubIMUTemperature  uint16 = 0x003C
)

// registry maps every device id a hub may report to its display name.
// An attach event carrying an id outside this table is a protocol-fatal
// condition: the hub is speaking a dialect this engine does not understand.
var registry = map[uint16]string{
	IDWedoMotor:           "Motor",
	IDTrainMotor:          "System Train Motor",
	IDButton:              "Button",
	IDLight:               "Light",
	IDVoltage:             "Voltage",
	IDCurrent:             "Current",
	IDPiezoTone:           "Piezo Tone (Sound)",
	IDRGBLight:            "RGB Light",
	IDExternalTilt:        "External Tilt Sensor",
	IDMotionSensor:        "Motion Sensor",
	IDVisionSensor:        "Vision Sensor",
	IDExternalMotor:       "External Motor with Tacho",
	IDInternalMotor:       "Internal Motor with Tacho",
	IDInternalTilt:        "Internal Tilt",
	IDDuploTrainMotor:     "Duplo Train Motor",
	IDDuploSpeaker:        "Duplo Train Speaker",
	IDDuploVision:         "Duplo Train Color",
	IDDuploSpeedometer:    "Duplo Train Speedometer",
	IDTechnicLargeMotor:   "Technic Control+ Large Motor",
	IDTechnicXLMotor:      "Technic Control+ XL Motor",
	IDHubIMUGesture:       "Powered Up Hub IMU Gesture",
	IDRemoteButtons:       "Remote Button",
	IDRemoteSignalLevel:   "Remote Signal Level",
	IDHubIMUAccelerometer: "Powered Up Hub IMU Accelerometer",
	IDHubIMUGyro:          "Powered Up Hub IMU Gyro",
	IDHubIMUPosition:      "Powered Up Hub IMU Position",
	IDHubIMUTemperature:   "Powered Up Hub IMU Temperature",
}

// Name looks up the display name for a device id.
func Name(id uint16) (string, bool) {
	name, ok := registry[id]
	return name, ok
}

// Color is one of the preset colors supported by hub and RGB lights.
type Color byte

const (
	ColorBlack     Color = 0
	ColorPink      Color = 1
	ColorPurple    Color = 2
	ColorBlue      Color = 3
	ColorLightBlue Color = 4
	ColorCyan      Color = 5
	ColorGreen     Color = 6
	ColorYellow    Color = 7
	ColorOrange    Color = 8
	ColorRed       Color = 9
	ColorWhite     Color = 10
	ColorNone      Color = 255
)
