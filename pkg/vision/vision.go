// Package vision defines the narrow external interface to the camera and
// its face/person detector: detection, still-capture, and frame geometry.
package vision

import "context"

// Detection is a single face/person sighting in camera pixel coordinates.
type Detection struct {
	HumanCount int
	CenterX    float64
	CenterY    float64
}

// Detector is the external collaborator FaceTracker and the `look_and_see`
// tool depend on. A concrete implementation backed by the gocv-based
// pkg/tracking/detection package lives alongside this interface.
type Detector interface {
	// Detect returns the most recent detection, or ok=false if no
	// face/person is currently in frame.
	Detect(ctx context.Context) (Detection, bool, error)

	// CaptureImage saves a still frame to disk and returns its path.
	CaptureImage(ctx context.Context, path string) (string, error)

	// FrameSize returns the camera's pixel dimensions, known at boot.
	FrameSize() (width, height int)
}
