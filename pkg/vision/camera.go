package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-pidog/internal/httpc"
	"github.com/teslashibe/go-pidog/pkg/tracking/detection"
)

// HTTPCamera is a Provider fetching JPEG frames from the robot daemon's
// camera endpoint.
type HTTPCamera struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPCamera creates a camera client against http://{robotIP}:8000.
func NewHTTPCamera(robotIP string) *HTTPCamera {
	return &HTTPCamera{
		BaseURL: fmt.Sprintf("http://%s:8000", robotIP),
		client:  httpc.NewClient(5 * time.Second),
	}
}

// CaptureFrame fetches one JPEG frame.
func (c *HTTPCamera) CaptureFrame() ([]byte, error) {
	resp, err := c.client.Get(c.BaseURL + "/api/camera/frame")
	if err != nil {
		return nil, fmt.Errorf("vision: camera frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: camera frame: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CameraDetector implements Detector by running the gocv face detector
// over frames from a Provider. It is the one concrete Detector used in
// production; tests and the tracker substitute their own fakes.
type CameraDetector struct {
	camera Provider
	faces  detection.Detector
	width  int
	height int

	captureDir string
}

// NewCameraDetector wires a camera and a face-detection backend at the
// known boot-time frame geometry.
func NewCameraDetector(camera Provider, faces detection.Detector, width, height int) *CameraDetector {
	return &CameraDetector{
		camera:     camera,
		faces:      faces,
		width:      width,
		height:     height,
		captureDir: os.TempDir(),
	}
}

var _ Detector = (*CameraDetector)(nil)

// Detect grabs a frame, runs the face detector, and reports the best
// face's center in camera pixels.
func (d *CameraDetector) Detect(ctx context.Context) (Detection, bool, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, false, err
	}

	frame, err := d.camera.CaptureFrame()
	if err != nil {
		return Detection{}, false, err
	}

	dets, err := d.faces.Detect(frame)
	if err != nil {
		return Detection{}, false, err
	}
	if len(dets) == 0 {
		return Detection{}, false, nil
	}

	best := detection.SelectBest(dets)
	cx, cy := best.Center()
	return Detection{
		HumanCount: len(dets),
		CenterX:    cx * float64(d.width),
		CenterY:    cy * float64(d.height),
	}, true, nil
}

// CaptureImage saves a still frame to path (or a temp file when path is
// empty) and returns where it landed.
func (d *CameraDetector) CaptureImage(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	frame, err := d.camera.CaptureFrame()
	if err != nil {
		return "", err
	}

	if path == "" {
		path = filepath.Join(d.captureDir, fmt.Sprintf("capture_%d.jpg", time.Now().UnixNano()))
	}
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return "", fmt.Errorf("vision: write capture: %w", err)
	}
	return path, nil
}

// FrameSize returns the camera geometry known at boot.
func (d *CameraDetector) FrameSize() (int, int) {
	return d.width, d.height
}

// Close releases the detector's native resources.
func (d *CameraDetector) Close() error {
	return d.faces.Close()
}
