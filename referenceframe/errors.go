package referenceframe

import "github.com/pkg/errors"

var (
	// ErrTransformUnavailable is returned when no transform connects two frames at the requested
	// time, either because the frames are not connected or because data for that time is missing.
	ErrTransformUnavailable = errors.New("transform unavailable")

	// ErrTransformStale is returned when the newest transform connecting two frames is older
	// than the caller's tolerance.
	ErrTransformStale = errors.New("transform stale")
)

// NewFrameMissingError returns an error indicating that the given frame is not known.
func NewFrameMissingError(frameName string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frame %q does not exist", frameName)
}

// NewFramesNotConnectedError returns an error indicating that two frames share no common root.
func NewFramesNotConnectedError(target, source string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frames %q and %q are not connected", target, source)
}

// NewExtrapolationError returns an error indicating that a lookup asked for a time outside the
// cached history of an edge.
func NewExtrapolationError(parent, child string) error {
	return errors.Wrapf(ErrTransformUnavailable, "lookup of %q->%q would require extrapolation", parent, child)
}

// NewInvalidTransformError is returned when a transform cannot be stored in the buffer.
func NewInvalidTransformError(parent, child, reason string) error {
	return errors.Errorf("invalid transform %q->%q: %s", parent, child, reason)
}
