package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/costmapclient/utils"
)

// State is a step of client initialization.
type State int32

// The initialization steps, in order.
const (
	Uninitialized State = iota
	AwaitingMap
	AwaitingPose
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AwaitingMap:
		return "awaiting_map"
	case AwaitingPose:
		return "awaiting_pose"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// ErrInitTimeout is returned when the client did not become ready before its deadline.
var ErrInitTimeout = errors.New("costmap client did not become ready")

const readinessWarningInterval = 5 * time.Second

// State returns the current initialization step.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.setState(s)
}

// WaitUntilReady polls until a full costmap has been applied and then until the robot pose can
// be resolved. It gives up when ctx is done or the configured init timeout elapses.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	if c.State() == Ready {
		return nil
	}
	if timeout := c.cfg.InitTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if c.State() == Uninitialized {
		c.setState(AwaitingMap)
		c.lifecycleLogger.Infow("waiting for costmap to become available", "topic", c.cfg.CostmapTopic)
	}

	ticker := c.clk.Ticker(c.cfg.PollInterval())
	defer ticker.Stop()
	warnings := utils.NewThrottle(c.clk, readinessWarningInterval)
	// The first warning is held back one interval; the info log above already covers it.
	warnings.Allow()

	for {
		switch c.State() {
		case AwaitingMap:
			if c.hasMap() {
				c.setState(AwaitingPose)
				c.lifecycleLogger.Infow("costmap received, waiting for robot pose",
					"global_frame", c.GlobalFrameID(), "base_frame", c.cfg.RobotBaseFrame)
				continue
			}
			if warnings.Allow() {
				c.lifecycleLogger.Warnw("still waiting for costmap", "topic", c.cfg.CostmapTopic)
			}
		case AwaitingPose:
			_, err := c.RobotPose(ctx)
			if err == nil {
				c.setState(Ready)
				c.lifecycleLogger.Info("costmap client is ready")
				return nil
			}
			if warnings.Allow() {
				c.lifecycleLogger.Warnw("timed out waiting for transform to become available",
					"global_frame", c.GlobalFrameID(), "base_frame", c.cfg.RobotBaseFrame, "error", err)
			}
		case Ready:
			return nil
		case Uninitialized:
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ErrInitTimeout, "stuck in %s: %v", c.State(), ctx.Err())
		case <-ticker.C:
		}
	}
}
