package client

import (
	"github.com/pkg/errors"

	"go.viam.com/costmapclient/costmap"
	"go.viam.com/costmapclient/footprint"
)

// Update kinds, used as metric labels.
const (
	kindFull      = "full"
	kindPartial   = "partial"
	kindFootprint = "footprint"
	kindTransform = "transform"
)

// UpdateFullMap replaces the grid with the snapshot. A snapshot whose data does not match its
// size leaves the grid untouched and is reported as an error.
func (c *Client) UpdateFullMap(s *costmap.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.GlobalFrame != "" && s.Frame != "" && s.Frame != c.cfg.GlobalFrame {
		return c.reject(kindFull, errors.Wrapf(costmap.ErrFrameMismatch,
			"snapshot in frame %q, expected %q", s.Frame, c.cfg.GlobalFrame))
	}
	if err := c.costmap.ApplySnapshot(s); err != nil {
		return c.reject(kindFull, err)
	}
	if c.cfg.GlobalFrame == "" && s.Frame != "" {
		if c.globalFrame != "" && c.globalFrame != s.Frame {
			c.mergeLogger.Infow("costmap frame changed", "old", c.globalFrame, "new", s.Frame)
		}
		c.globalFrame = s.Frame
	}
	if !c.mapReceived {
		c.mergeLogger.Infow("received first costmap",
			"frame", c.globalFrame, "width", s.Width, "height", s.Height, "resolution", s.Resolution)
	}
	c.mapReceived = true
	c.metrics.applied(kindFull)
	c.mergeLogger.Debugw("applied full costmap", "width", s.Width, "height", s.Height)
	return nil
}

// UpdatePartialMap overwrites the window's rectangle of the grid. A window that is malformed,
// in another frame, or not fully inside the grid leaves the grid untouched and is reported as
// an error. An empty window is a no-op.
func (c *Client) UpdatePartialMap(w *costmap.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w.Frame != "" && c.globalFrame != "" && w.Frame != c.globalFrame {
		return c.reject(kindPartial, errors.Wrapf(costmap.ErrFrameMismatch,
			"window in frame %q, costmap is in %q", w.Frame, c.globalFrame))
	}
	if err := c.costmap.ApplyWindow(w); err != nil {
		return c.reject(kindPartial, err)
	}
	c.metrics.applied(kindPartial)
	return nil
}

// UpdateFootprint replaces the footprint and recomputes both radii from it in one step. An empty
// polygon resets the radii to the configured robot radius.
func (c *Client) UpdateFootprint(p footprint.Polygon) {
	radii := footprint.CalculateRadii(p, c.cfg.Radius())

	c.mu.Lock()
	c.footprint = p.Clone()
	c.radii = radii
	c.mu.Unlock()

	c.metrics.applied(kindFootprint)
	c.mergeLogger.Debugw("updated footprint",
		"vertices", len(p), "inscribed_radius", radii.Inscribed, "circumscribed_radius", radii.Circumscribed)
}

func (c *Client) reject(kind string, err error) error {
	c.metrics.rejected(kind)
	c.mergeLogger.Warnw("rejected costmap update", "kind", kind, "error", err)
	return err
}

func (c *Client) hasMap() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mapReceived
}
