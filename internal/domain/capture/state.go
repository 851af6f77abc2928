package capture

// Image is a decoded signature image.
type Image struct {
	Base64    string `json:"base64"`
	Data      []byte `json:"-"`
	MIMEType  string `json:"mimeType"`
	Extension string `json:"extension"`
}

// DeviceInfo describes the attached tablet. Unreadable fields hold "unknown".
type DeviceInfo struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`
}

// Stats describes the captured signature.
type Stats struct {
	TotalPoints string `json:"totalPoints"`
	Strokes     string `json:"strokes"`
}

// State is everything the operator sees. Nil tri-state fields mean
// "not known".
type State struct {
	Version         string      `json:"version"`
	TabletConnected *bool       `json:"tabletConnected"`
	BridgeDetected  *bool       `json:"bridgeDetected"`
	LastAction      string      `json:"lastAction,omitempty"`
	LastError       string      `json:"lastError,omitempty"`
	Image           *Image      `json:"image,omitempty"`
	SigString       string      `json:"sigString,omitempty"`
	DeviceInfo      *DeviceInfo `json:"deviceInfo,omitempty"`
	Stats           *Stats      `json:"stats,omitempty"`
}

// Failed reports whether the last action left an error.
func (s State) Failed() bool {
	return s.LastError != ""
}

func begin(s State, action string) State {
	s.LastAction = action
	s.LastError = ""
	return s
}

func boolPtr(b bool) *bool {
	return &b
}
