// Package ros bridges the costmap client to a ROS graph: message shapes for the costmap, its
// updates, the footprint and tf, plus sources that deliver them from a rosbridge server or a
// recorded bag.
package ros

import (
	"context"
	"strings"
)

// Message types of the topics the costmap client consumes.
const (
	OccupancyGridType       = "nav_msgs/OccupancyGrid"
	OccupancyGridUpdateType = "map_msgs/OccupancyGridUpdate"
	PolygonStampedType      = "geometry_msgs/PolygonStamped"
	TFMessageType           = "tf2_msgs/TFMessage"
)

// Handler receives the JSON encoded payload of one message.
type Handler func(ctx context.Context, payload []byte)

// Subscriber delivers messages of subscribed topics. Messages of one topic are handled in
// arrival order on a single goroutine; different topics are handled concurrently.
type Subscriber interface {
	// Subscribe registers handler for topic. It must be called before Start.
	Subscribe(topic, msgType string, handler Handler) error
	// Start begins delivery. It returns once delivery is running.
	Start(ctx context.Context) error
	// Close stops delivery and waits for handlers to return.
	Close() error
}

// NormalizeTopic returns the fully qualified form of a topic name.
func NormalizeTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.HasPrefix(topic, "/") {
		return topic
	}
	return "/" + topic
}

// StripLeadingSlash removes the tf prefix slash that older ROS graphs put on frame ids.
func StripLeadingSlash(frame string) string {
	return strings.TrimPrefix(frame, "/")
}
