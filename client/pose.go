package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/costmapclient/referenceframe"
)

const poseWarningInterval = time.Second

// RobotPose returns the pose of the robot base in the global frame of the costmap. The lookup
// waits at most the configured transform tolerance and fails when the newest available transform
// is older than that tolerance. It never holds the costmap lock while waiting.
func (c *Client) RobotPose(ctx context.Context) (*referenceframe.PoseInFrame, error) {
	global := c.GlobalFrameID()
	if global == "" {
		return nil, errors.Wrap(referenceframe.ErrTransformUnavailable, "global frame is unknown until the first costmap arrives")
	}
	base := c.cfg.RobotBaseFrame
	tolerance := c.cfg.TransformTolerance()

	lookupCtx, cancel := context.WithTimeout(ctx, tolerance)
	defer cancel()
	tf, err := c.resolver.LookupTransform(lookupCtx, global, base, time.Time{})
	if err != nil {
		err = errors.Wrapf(err, "unable to get robot pose in %q", global)
		if c.poseWarnings.Allow() {
			c.logger.Warnw("robot pose unavailable", "base_frame", base, "global_frame", global, "error", err)
		}
		return nil, err
	}

	if age := c.clk.Now().Sub(tf.Stamp); age > tolerance {
		err := errors.Wrapf(referenceframe.ErrTransformStale,
			"%q->%q is %v old, tolerance is %v", global, base, age, tolerance)
		if c.poseWarnings.Allow() {
			c.logger.Warnw("robot pose transform timeout", "error", err)
		}
		return nil, err
	}
	return tf.PoseInParent(), nil
}
