package costmap

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedSnapshot is returned for full snapshots whose data does not match their geometry.
	ErrMalformedSnapshot = errors.New("malformed costmap snapshot")
	// ErrMalformedWindow is returned for windows whose data does not match their extent.
	ErrMalformedWindow = errors.New("malformed costmap window")
	// ErrWindowOutOfBounds is returned for windows that do not fit inside the current grid.
	ErrWindowOutOfBounds = errors.New("costmap window out of bounds")
	// ErrFrameMismatch is returned for updates expressed in a frame other than the grid's.
	ErrFrameMismatch = errors.New("costmap update frame mismatch")
)

// Snapshot is a full replacement of the grid's geometry and contents. Data holds occupancy
// values in row-major order.
type Snapshot struct {
	Frame      string
	Stamp      time.Time
	Resolution float64
	Width      int
	Height     int
	OriginX    float64
	OriginY    float64
	Data       []int8
}

// Validate checks that the snapshot describes a consistent grid.
func (s *Snapshot) Validate() error {
	switch {
	case s.Width < 0 || s.Height < 0:
		return errors.Wrapf(ErrMalformedSnapshot, "negative size %dx%d", s.Width, s.Height)
	case s.Resolution <= 0:
		return errors.Wrapf(ErrMalformedSnapshot, "resolution must be positive, got %v", s.Resolution)
	case !cellCountFits(s.Width, s.Height):
		return errors.Wrapf(ErrMalformedSnapshot, "size %dx%d overflows the cell count", s.Width, s.Height)
	case len(s.Data) != s.Width*s.Height:
		return errors.Wrapf(ErrMalformedSnapshot, "data length %d does not match %dx%d", len(s.Data), s.Width, s.Height)
	}
	return nil
}

// Window is a rectangular patch of occupancy values with its lower-left corner at cell (X, Y).
type Window struct {
	Frame  string
	Stamp  time.Time
	X      int
	Y      int
	Width  int
	Height int
	Data   []int8
}

// Empty reports whether the window covers no cells.
func (w *Window) Empty() bool {
	return w.Width == 0 || w.Height == 0
}

// Validate checks the window against its own data and the bounds of a sizeX by sizeY grid.
func (w *Window) Validate(sizeX, sizeY int) error {
	if w.Width < 0 || w.Height < 0 {
		return errors.Wrapf(ErrMalformedWindow, "negative size %dx%d", w.Width, w.Height)
	}
	if !cellCountFits(w.Width, w.Height) {
		return errors.Wrapf(ErrMalformedWindow, "size %dx%d overflows the cell count", w.Width, w.Height)
	}
	if len(w.Data) != w.Width*w.Height {
		return errors.Wrapf(ErrMalformedWindow, "data length %d does not match %dx%d", len(w.Data), w.Width, w.Height)
	}
	if w.Empty() {
		return nil
	}
	// Compared without adding so offsets near MaxInt cannot wrap.
	if w.X < 0 || w.Y < 0 || w.X > sizeX || w.Y > sizeY || w.Width > sizeX-w.X || w.Height > sizeY-w.Y {
		return errors.Wrapf(ErrWindowOutOfBounds,
			"%dx%d window at (%d,%d) does not fit in %dx%d grid", w.Width, w.Height, w.X, w.Y, sizeX, sizeY)
	}
	return nil
}

// cellCountFits reports whether width*height is representable. Both must be non-negative.
func cellCountFits(width, height int) bool {
	return height == 0 || width <= math.MaxInt/height
}

// ApplySnapshot replaces the grid with s. The grid is untouched when s is invalid.
func (cm *Costmap2D) ApplySnapshot(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cm.ResizeMap(s.Width, s.Height, s.Resolution, s.OriginX, s.OriginY)
	for i, v := range s.Data {
		cm.costs[i] = TranslateOccupancy(v)
	}
	return nil
}

// ApplyWindow overwrites the cells covered by w. The grid is untouched when w is invalid or out
// of bounds.
func (cm *Costmap2D) ApplyWindow(w *Window) error {
	if err := w.Validate(cm.sizeX, cm.sizeY); err != nil {
		return err
	}
	for dy := 0; dy < w.Height; dy++ {
		row := w.Data[dy*w.Width : (dy+1)*w.Width]
		offset := cm.Index(w.X, w.Y+dy)
		for dx, v := range row {
			cm.costs[offset+dx] = TranslateOccupancy(v)
		}
	}
	return nil
}
