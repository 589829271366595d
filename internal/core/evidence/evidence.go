// Package evidence defines the opaque references produced by the host
// platform's capture facilities (camera, signature pad, GPS). The engine
// never inspects these values; it only checks that they are present.
package evidence

import "context"

// PhotoRef is an opaque reference to a stored photo blob.
type PhotoRef string

// SignatureRef is an opaque reference to a captured digital signature.
type SignatureRef string

// Coordinates is a GPS coordinate pair captured at finalization.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the coordinate pair is unset. A true (0,0) fix is not
// a plausible service location, so it is treated as missing.
func (c Coordinates) Zero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Role identifies whose signature is being captured.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleClient     Role = "client"
)

// Capturer acquires evidence from the host platform. Implementations are
// collaborators outside the engine; tests use stubs.
type Capturer interface {
	CapturePhoto(ctx context.Context) (PhotoRef, error)
	CaptureSignature(ctx context.Context, role Role) (SignatureRef, error)
	CaptureLocation(ctx context.Context) (Coordinates, error)
}
