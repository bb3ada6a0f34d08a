// Package client keeps a local copy of a remote costmap in sync and answers where the robot is
// on it.
//
// A Client receives full snapshots, windowed updates and footprint polygons on independent
// goroutines and applies them under a single lock. Planning code reads the grid through
// ReadCostmap or CostmapSnapshot and asks for the robot pose with RobotPose. New blocks until
// the first snapshot has been applied and the first pose has been resolved.
package client

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/costmapclient/config"
	"go.viam.com/costmapclient/costmap"
	"go.viam.com/costmapclient/footprint"
	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/referenceframe"
	"go.viam.com/costmapclient/ros"
	"go.viam.com/costmapclient/utils"
)

type options struct {
	clk        clock.Clock
	registerer prometheus.Registerer
}

// Option configures a Client.
type Option func(*options)

// WithClock replaces the wall clock used for polling and transform staleness checks.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithRegisterer registers the client's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Client is the local, lock-protected belief of the costmap and the robot footprint.
type Client struct {
	cfg             *config.Config
	clk             clock.Clock
	resolver        referenceframe.TransformResolver
	logger          logging.Logger
	mergeLogger     logging.Logger
	lifecycleLogger logging.Logger
	metrics         *metrics
	poseWarnings    *utils.Throttle

	// mu guards everything below it.
	mu          sync.RWMutex
	costmap     *costmap.Costmap2D
	globalFrame string
	footprint   footprint.Polygon
	radii       footprint.Radii
	mapReceived bool

	state atomic.Int32

	sourcesMu sync.Mutex
	sources   []ros.Subscriber
}

// NewClient returns a client that has not received anything yet. Updates are applied by calling
// the Update methods directly or by attaching a subscriber. Use New to also wait for readiness.
func NewClient(cfg *config.Config, resolver referenceframe.TransformResolver, logger logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate("costmap_client"); err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, errors.New("a transform resolver is required")
	}
	o := options{clk: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:             cfg,
		clk:             o.clk,
		resolver:        resolver,
		logger:          logger,
		mergeLogger:     logger.Sublogger("merger"),
		lifecycleLogger: logger.Sublogger("lifecycle"),
		metrics:         m,
		poseWarnings:    utils.NewThrottle(o.clk, poseWarningInterval),
		costmap:         costmap.NewCostmap2D(0, 0, 1, 0, 0, costmap.NoInformation),
		globalFrame:     cfg.GlobalFrame,
		radii:           footprint.DefaultRadii(cfg.Radius()),
	}
	c.setState(Uninitialized)

	if static := cfg.StaticFootprint(); len(static) > 0 {
		c.UpdateFootprint(static)
	}
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// ReadCostmap calls fn with the grid while holding the read lock. fn must not keep the grid or
// modify it.
func (c *Client) ReadCostmap(fn func(cm *costmap.Costmap2D)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.costmap)
}

// CostmapSnapshot returns a copy of the grid that the caller owns.
func (c *Client) CostmapSnapshot() *costmap.Costmap2D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.costmap.Clone()
}

// GlobalFrameID returns the frame of the grid, empty until known.
func (c *Client) GlobalFrameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.globalFrame
}

// BaseFrameID returns the robot base frame.
func (c *Client) BaseFrameID() string {
	return c.cfg.RobotBaseFrame
}

// Footprint returns a copy of the latest footprint polygon.
func (c *Client) Footprint() footprint.Polygon {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.footprint.Clone()
}

// Radii returns the inscribed and circumscribed radius of the latest footprint together.
func (c *Client) Radii() footprint.Radii {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.radii
}

// InscribedRadius returns the inscribed radius of the latest footprint.
func (c *Client) InscribedRadius() float64 {
	return c.Radii().Inscribed
}

// CircumscribedRadius returns the circumscribed radius of the latest footprint.
func (c *Client) CircumscribedRadius() float64 {
	return c.Radii().Circumscribed
}

// Close stops every attached subscriber.
func (c *Client) Close() error {
	c.sourcesMu.Lock()
	sources := c.sources
	c.sources = nil
	c.sourcesMu.Unlock()

	var err error
	for _, src := range sources {
		err = multierr.Combine(err, src.Close())
	}
	return err
}
