// Package hardware defines the narrow interface the orchestrator uses to
// reach the physical dog's servos and sensors: small, focused interfaces
// for each capability (head, legs, touch, ears, IMU, range, lights,
// battery, sound) composed into one Dog contract. Consumers that only
// need a slice of the surface depend on the narrower interface instead
// of the whole thing.
package hardware

import "time"

// TouchState is the raw dual-touch sensor reading.
type TouchState string

const (
	TouchNone          TouchState = "N"
	TouchLeft          TouchState = "L"
	TouchRight         TouchState = "R"
	TouchFrontToBack   TouchState = "LS"
	TouchBackToFront   TouchState = "RS"
)

// HeadController moves the head.
type HeadController interface {
	SetHeadPose(roll, pitch, yaw float64) error
	HeadCurrentAngles() (yaw, pitch, roll float64, err error)
}

// LegController moves legs/gait.
type LegController interface {
	LegsMove(angles [][]float64, speed int) error
	LegCurrentAngles() ([]float64, error)
	WaitLegsDone() error
	BodyStop() error
}

// ActionController runs named, firmware-resident motion sequences (gaits,
// canned behaviors the leg driver knows natively).
type ActionController interface {
	DoAction(name string, speed int, stepCount int) error
}

// TouchSensor reads the petting sensor.
type TouchSensor interface {
	ReadTouch() (TouchState, error)
}

// EarSensor reads the ear-array sound-direction angle.
type EarSensor interface {
	EarsDetected() (bool, error)
	EarsRead() (degrees float64, err error)
}

// MotionSensor reads the IMU.
type MotionSensor interface {
	AccData() (ax, ay, az float64, err error)
	GyroData() (gx, gy, gz float64, err error)
}

// RangeSensor reads the ultrasonic distance sensor; callers must tolerate
// failure (no echo, out of range).
type RangeSensor interface {
	Distance() (cm float64, err error)
}

// LightStrip drives the RGB status strip.
type LightStrip interface {
	RGBStripSetMode(style, color string, bps float64, brightness float64) error
	RGBStripDisplay(lights []uint32) error
}

// PowerStatus exposes battery health.
type PowerStatus interface {
	GetBatteryVoltage() (float64, error)
}

// SoundPlayer plays PCM files and background music through the robot's
// own speaker (not the AudioPipeline's model-voice path).
type SoundPlayer interface {
	SpeakBlock(filename string, volume int) error
	MusicPlay(path string, volume int) error
}

// Closer releases the underlying connection.
type Closer interface {
	Close() error
}

// Dog composes every capability the orchestrator needs into one contract.
// Concrete drivers (HTTPController, a future Zenoh/serial one) implement
// the whole set; consumers that only need a slice (HeadController alone,
// say) should depend on the narrower interface instead.
type Dog interface {
	HeadController
	LegController
	ActionController
	TouchSensor
	EarSensor
	MotionSensor
	RangeSensor
	LightStrip
	PowerStatus
	SoundPlayer
	Closer
}

// WaitTimeout bounds how long WaitLegsDone-style calls may block before a
// caller gives up.
const WaitTimeout = 10 * time.Second
