package hardware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/teslashibe/go-pidog/internal/httpc"
)

// HTTPController implements Dog against the robot daemon's REST API. It
// is the primary concrete driver used by the orchestrator.
type HTTPController struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPController creates a driver talking to the robot daemon at
// http://{robotIP}:8000.
func NewHTTPController(robotIP string) *HTTPController {
	return &HTTPController{
		BaseURL: fmt.Sprintf("http://%s:8000", robotIP),
		client:  httpc.NewClient(2 * time.Second),
	}
}

var _ Dog = (*HTTPController)(nil)

func (h *HTTPController) postJSON(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hardware: marshal %s payload: %w", path, err)
	}
	resp, err := h.client.Post(h.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("hardware: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hardware: %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (h *HTTPController) getJSON(path string, out any) error {
	resp, err := h.client.Get(h.BaseURL + path)
	if err != nil {
		return fmt.Errorf("hardware: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hardware: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (h *HTTPController) SetHeadPose(roll, pitch, yaw float64) error {
	return h.postJSON("/api/head/set_pose", map[string]float64{"roll": roll, "pitch": pitch, "yaw": yaw})
}

func (h *HTTPController) HeadCurrentAngles() (yaw, pitch, roll float64, err error) {
	var out struct {
		Yaw, Pitch, Roll float64
	}
	if err = h.getJSON("/api/head/angles", &out); err != nil {
		return 0, 0, 0, err
	}
	return out.Yaw, out.Pitch, out.Roll, nil
}

func (h *HTTPController) LegsMove(angles [][]float64, speed int) error {
	return h.postJSON("/api/legs/move", map[string]any{"angles": angles, "speed": speed})
}

func (h *HTTPController) LegCurrentAngles() ([]float64, error) {
	var out struct {
		Angles []float64 `json:"angles"`
	}
	if err := h.getJSON("/api/legs/angles", &out); err != nil {
		return nil, err
	}
	return out.Angles, nil
}

func (h *HTTPController) WaitLegsDone() error {
	return h.postJSON("/api/legs/wait_done", nil)
}

func (h *HTTPController) BodyStop() error {
	return h.postJSON("/api/body/stop", nil)
}

func (h *HTTPController) DoAction(name string, speed int, stepCount int) error {
	return h.postJSON("/api/action/do", map[string]any{"name": name, "speed": speed, "step_count": stepCount})
}

func (h *HTTPController) ReadTouch() (TouchState, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := h.getJSON("/api/sensors/touch", &out); err != nil {
		return TouchNone, err
	}
	return TouchState(out.Status), nil
}

func (h *HTTPController) EarsDetected() (bool, error) {
	var out struct {
		Detected bool `json:"detected"`
	}
	if err := h.getJSON("/api/sensors/ears/detected", &out); err != nil {
		return false, err
	}
	return out.Detected, nil
}

func (h *HTTPController) EarsRead() (float64, error) {
	var out struct {
		Degrees float64 `json:"degrees"`
	}
	if err := h.getJSON("/api/sensors/ears/read", &out); err != nil {
		return 0, err
	}
	return out.Degrees, nil
}

func (h *HTTPController) AccData() (ax, ay, az float64, err error) {
	var out struct{ Ax, Ay, Az float64 }
	if err = h.getJSON("/api/sensors/imu/acc", &out); err != nil {
		return 0, 0, 0, err
	}
	return out.Ax, out.Ay, out.Az, nil
}

func (h *HTTPController) GyroData() (gx, gy, gz float64, err error) {
	var out struct{ Gx, Gy, Gz float64 }
	if err = h.getJSON("/api/sensors/imu/gyro", &out); err != nil {
		return 0, 0, 0, err
	}
	return out.Gx, out.Gy, out.Gz, nil
}

func (h *HTTPController) Distance() (float64, error) {
	var out struct {
		Cm float64 `json:"cm"`
	}
	if err := h.getJSON("/api/sensors/distance", &out); err != nil {
		return 0, err
	}
	return out.Cm, nil
}

func (h *HTTPController) RGBStripSetMode(style, color string, bps float64, brightness float64) error {
	return h.postJSON("/api/rgb/set_mode", map[string]any{
		"style": style, "color": color, "bps": bps, "brightness": brightness,
	})
}

func (h *HTTPController) RGBStripDisplay(lights []uint32) error {
	return h.postJSON("/api/rgb/display", map[string]any{"lights": lights})
}

func (h *HTTPController) GetBatteryVoltage() (float64, error) {
	var out struct {
		Voltage float64 `json:"voltage"`
	}
	if err := h.getJSON("/api/status/battery", &out); err != nil {
		return 0, err
	}
	return out.Voltage, nil
}

func (h *HTTPController) SpeakBlock(filename string, volume int) error {
	return h.postJSON("/api/sound/speak_block", map[string]any{"filename": filename, "volume": volume})
}

func (h *HTTPController) MusicPlay(path string, volume int) error {
	return h.postJSON("/api/sound/music_play", map[string]any{"path": path, "volume": volume})
}

func (h *HTTPController) Close() error {
	return nil
}
