package client

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/costmapclient/config"
	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/referenceframe"
	"go.viam.com/costmapclient/ros"
)

// New builds a client, attaches it to sub, starts delivery and blocks until the client is ready.
// On failure everything that was started is stopped again.
func New(
	ctx context.Context,
	cfg *config.Config,
	resolver referenceframe.TransformResolver,
	sub ros.Subscriber,
	logger logging.Logger,
	opts ...Option,
) (*Client, error) {
	c, err := NewClient(cfg, resolver, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Attach(sub); err != nil {
		return nil, multierr.Combine(err, sub.Close())
	}
	if err := sub.Start(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "unable to start message delivery"), c.Close())
	}
	if err := c.WaitUntilReady(ctx); err != nil {
		return nil, multierr.Combine(err, c.Close())
	}
	return c, nil
}

type subscription struct {
	topic, msgType string
	handler        ros.Handler
}

// Attach subscribes the client to its costmap, costmap update and footprint topics on sub. If
// the client's resolver also accepts transforms, the tf topics are routed into it as well. The
// client closes sub when it is closed.
func (c *Client) Attach(sub ros.Subscriber) error {
	subs := []subscription{
		{c.cfg.CostmapTopic, ros.OccupancyGridType, c.handleOccupancyGrid},
		{c.cfg.CostmapUpdatesTopic, ros.OccupancyGridUpdateType, c.handleOccupancyGridUpdate},
		{c.cfg.FootprintTopic, ros.PolygonStampedType, c.handlePolygonStamped},
	}
	if sink, ok := c.resolver.(referenceframe.TransformSink); ok {
		subs = append(subs,
			subscription{c.cfg.TFTopic, ros.TFMessageType, c.transformHandler(sink, false)},
			subscription{c.cfg.TFStaticTopic, ros.TFMessageType, c.transformHandler(sink, true)},
		)
	}
	for _, s := range subs {
		if err := sub.Subscribe(s.topic, s.msgType, s.handler); err != nil {
			return errors.Wrapf(err, "unable to subscribe to %q", s.topic)
		}
	}

	c.sourcesMu.Lock()
	c.sources = append(c.sources, sub)
	c.sourcesMu.Unlock()
	return nil
}

func (c *Client) handleOccupancyGrid(_ context.Context, payload []byte) {
	msg, err := ros.DecodeOccupancyGrid(payload)
	if err != nil {
		c.dropped(kindFull, err)
		return
	}
	//nolint:errcheck // the merger logs and counts rejections
	c.UpdateFullMap(msg.ToSnapshot())
}

func (c *Client) handleOccupancyGridUpdate(_ context.Context, payload []byte) {
	msg, err := ros.DecodeOccupancyGridUpdate(payload)
	if err != nil {
		c.dropped(kindPartial, err)
		return
	}
	//nolint:errcheck // the merger logs and counts rejections
	c.UpdatePartialMap(msg.ToWindow())
}

func (c *Client) handlePolygonStamped(_ context.Context, payload []byte) {
	msg, err := ros.DecodePolygonStamped(payload)
	if err != nil {
		c.dropped(kindFootprint, err)
		return
	}
	c.UpdateFootprint(msg.ToPolygon())
}

func (c *Client) transformHandler(sink referenceframe.TransformSink, static bool) ros.Handler {
	return func(_ context.Context, payload []byte) {
		msg, err := ros.DecodeTFMessage(payload)
		if err != nil {
			c.dropped(kindTransform, err)
			return
		}
		for _, tf := range msg.ToStampedTransforms() {
			if err := sink.SetTransform(tf, static); err != nil {
				c.dropped(kindTransform, err)
				continue
			}
			c.metrics.applied(kindTransform)
		}
	}
}

// dropped records a message that never reached the merger.
func (c *Client) dropped(kind string, err error) {
	c.metrics.rejected(kind)
	c.logger.Warnw("dropping message", "kind", kind, "error", err)
}
