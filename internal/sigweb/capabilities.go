package sigweb

import "context"

// Capability names, as they appear in CapabilityError messages.
const (
	CapOpenTablet      = "OpenTablet"
	CapSetCapture      = "TabletState"
	CapCloseTablet     = "CloseTablet"
	CapClearSignature  = "ClearSignature"
	CapSignatureImage  = "SigImage"
	CapVersion         = "Version"
	CapConnectQuery    = "TabletConnectQuery"
	CapTabletState     = "GetTabletState"
	CapModelNumber     = "TabletModelNumber"
	CapSerialNumber    = "TabletSerialNumber"
	CapFirmware        = "FirmwareRevision"
	CapSigString       = "SigString"
	CapSetSigString    = "SetSigString"
	CapTotalPoints     = "TotalPoints"
	CapNumberOfStrokes = "NumberOfStrokes"
)

type Opener interface {
	OpenTablet(ctx context.Context) error
}

// CaptureToggler switches capture mode on or off.
type CaptureToggler interface {
	SetCapture(ctx context.Context, on bool) error
}

type Closer interface {
	CloseTablet(ctx context.Context) error
}

type Clearer interface {
	ClearSignature(ctx context.Context) error
}

// ImageFetcher returns the captured signature as base64 text.
type ImageFetcher interface {
	SignatureImage(ctx context.Context) (string, error)
}

type VersionReader interface {
	Version(ctx context.Context) (string, error)
}

// ConnectQuerier answers "1" when a tablet is attached.
type ConnectQuerier interface {
	TabletConnectQuery(ctx context.Context) (string, error)
}

type StateReader interface {
	TabletState(ctx context.Context) (string, error)
}

type ModelReader interface {
	ModelNumber(ctx context.Context) (string, error)
}

type SerialReader interface {
	SerialNumber(ctx context.Context) (string, error)
}

type FirmwareReader interface {
	FirmwareRevision(ctx context.Context) (string, error)
}

type SigStringReader interface {
	SigString(ctx context.Context) (string, error)
}

type SigStringWriter interface {
	SetSigString(ctx context.Context, sigString string) error
}

type PointCounter interface {
	TotalPoints(ctx context.Context) (string, error)
}

type StrokeCounter interface {
	NumberOfStrokes(ctx context.Context) (string, error)
}

// BridgeProber checks a bridge health URL.
type BridgeProber interface {
	ProbeBridge(ctx context.Context, healthURL string) error
}

// As returns device's capability T, or a *CapabilityError naming it.
func As[T any](device any, name string) (T, error) {
	c, ok := device.(T)
	if !ok {
		var zero T
		return zero, &CapabilityError{Name: name}
	}
	return c, nil
}
