package commands

import (
	"context"
	"fmt"

	"github.com/tallerpro/checkup/internal/core/evidence"
)

// flagCapturer satisfies evidence.Capturer from command-line flags. The CLI
// stands in for the host platform here: references produced by the real
// camera and signature pad are passed through as flag values.
type flagCapturer struct {
	photo     string
	techSig   string
	clientSig string
	lat, lng  float64
}

func (f flagCapturer) CapturePhoto(context.Context) (evidence.PhotoRef, error) {
	if f.photo == "" {
		return "", fmt.Errorf("no photo reference provided")
	}
	return evidence.PhotoRef(f.photo), nil
}

func (f flagCapturer) CaptureSignature(_ context.Context, role evidence.Role) (evidence.SignatureRef, error) {
	ref := f.techSig
	if role == evidence.RoleClient {
		ref = f.clientSig
	}
	if ref == "" {
		return "", fmt.Errorf("no %s signature reference provided", role)
	}
	return evidence.SignatureRef(ref), nil
}

func (f flagCapturer) CaptureLocation(context.Context) (evidence.Coordinates, error) {
	return evidence.Coordinates{Lat: f.lat, Lng: f.lng}, nil
}

var _ evidence.Capturer = flagCapturer{}
