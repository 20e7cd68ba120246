package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable knob for the orchestrator. Fields
// group by the component they configure; each has the same default a fresh
// checkout would run with.
type Config struct {
	RobotIP  string
	ModelURL string
	ModelID  string
	APIKey   string
	Persona  string

	FaceTrackUpdateInterval  time.Duration
	FaceTrackRecenterTimeout time.Duration
	FaceTrackRecenterStep    float64

	SittingHeadPitchComp  float64
	StandingHeadPitchComp float64

	ModelSampleRate int
	AudioInputRate  int
	AudioOutputRate int
	AudioChunkSize  int
	AudioBackend    string

	SilenceThreshold         float64
	BargeInVolumeThreshold   float64
	EnableBargeIn            bool
	DisableSpeaker           bool
	SpeechTailDuration       time.Duration

	EnvironmentPollInterval time.Duration
	FaceDetectionInterval   time.Duration
	FaceDetectEnabled       bool
	DetectorBackend         string

	AwarenessLoudVolumeThreshold float64
	AwarenessDebounce            time.Duration
	AwarenessReminderInterval    time.Duration

	StateStreamInterval time.Duration

	TalkOverlayAudioGain float64

	CameraWidth  int
	CameraHeight int

	DashboardPort    string
	DashboardEnabled bool

	PersonaFile string
}

// LoadEnvConfig reads Config from the environment, falling back to the
// defaults named in the table below when a variable is unset or malformed.
func LoadEnvConfig() Config {
	return Config{
		RobotIP:  os.Getenv("ROBOT_IP"),
		ModelURL: getEnvDefault("REALTIME_MODEL_URL", "wss://api.openai.com/v1/realtime"),
		ModelID:  getEnvDefault("REALTIME_MODEL_ID", "gpt-realtime"),
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		Persona:  getEnvDefault("DEFAULT_PERSONA", "default"),

		FaceTrackUpdateInterval:  getEnvDurationSeconds("FACE_TRACK_UPDATE_INTERVAL", 0.05),
		FaceTrackRecenterTimeout: getEnvDurationSeconds("FACE_TRACK_RECENTER_TIMEOUT", 2.0),
		FaceTrackRecenterStep:    getEnvFloat("FACE_TRACK_RECENTER_STEP", 2.0),

		SittingHeadPitchComp:  getEnvFloat("SITTING_HEAD_PITCH_COMP", -20.0),
		StandingHeadPitchComp: getEnvFloat("STANDING_HEAD_PITCH_COMP", 0.0),

		ModelSampleRate: getEnvInt("MODEL_SAMPLE_RATE", 24000),
		AudioInputRate:  getEnvInt("AUDIO_INPUT_RATE", 0),
		AudioOutputRate: getEnvInt("AUDIO_OUTPUT_RATE", 0),
		AudioChunkSize:  getEnvInt("AUDIO_CHUNK_SIZE", 1024),
		AudioBackend:    getEnvDefault("AUDIO_BACKEND", "auto"),

		SilenceThreshold:       getEnvFloat("SILENCE_THRESHOLD", 25),
		BargeInVolumeThreshold: getEnvFloat("BARGE_IN_VOLUME_THRESHOLD", 50),
		EnableBargeIn:          getEnvBool("ENABLE_BARGE_IN", true),
		DisableSpeaker:         getEnvBool("DISABLE_PIDOG_SPEAKER", false),
		SpeechTailDuration:     getEnvDurationSeconds("SPEECH_TAIL_DURATION", 0.5),

		EnvironmentPollInterval: getEnvDurationSeconds("ENVIRONMENT_POLL_INTERVAL", 0.5),
		FaceDetectionInterval:   getEnvDurationSeconds("FACE_DETECTION_INTERVAL", 0.8),
		FaceDetectEnabled:       getEnvBool("FACE_DETECT_ENABLED", true),
		DetectorBackend:         getEnvDefault("DETECTOR_BACKEND", "yunet"),

		AwarenessLoudVolumeThreshold: getEnvFloat("AWARENESS_LOUD_VOLUME_THRESHOLD", 30),
		AwarenessDebounce:            getEnvDurationSeconds("AWARENESS_DEBOUNCE", 5.0),
		AwarenessReminderInterval:    getEnvDurationSeconds("AWARENESS_REMINDER_INTERVAL", 15.0),

		StateStreamInterval: getEnvDurationSeconds("K9_STATE_STREAM_INTERVAL", 1.0),

		TalkOverlayAudioGain: getEnvFloat("TALK_OVERLAY_AUDIO_GAIN", 1.0),

		CameraWidth:  getEnvInt("CAMERA_WIDTH", 640),
		CameraHeight: getEnvInt("CAMERA_HEIGHT", 480),

		DashboardPort:    getEnvDefault("DASHBOARD_PORT", "8888"),
		DashboardEnabled: getEnvBool("DASHBOARD_ENABLED", true),

		PersonaFile: os.Getenv("PERSONA_FILE"),
	}
}

// Validate reports the first missing required setting, or nil.
func (c Config) Validate() error {
	if c.RobotIP == "" {
		return errRequired("ROBOT_IP")
	}
	if c.APIKey == "" {
		return errRequired("OPENAI_API_KEY")
	}
	return nil
}

type missingEnvError string

func (e missingEnvError) Error() string {
	return "config: " + string(e) + " environment variable is required"
}

func errRequired(name string) error {
	return missingEnvError(name)
}

func getEnvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvFloat(name string, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(name string, def bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDurationSeconds(name string, defSeconds float64) time.Duration {
	secs := getEnvFloat(name, defSeconds)
	return time.Duration(secs * float64(time.Second))
}
