package ros

import (
	"encoding/json"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/costmapclient/costmap"
	"go.viam.com/costmapclient/footprint"
	"go.viam.com/costmapclient/referenceframe"
	"go.viam.com/costmapclient/spatialmath"
)

// Time is a ROS timestamp. ROS 1 encodes it as secs/nsecs and ROS 2 as sec/nanosec; both
// spellings are accepted.
type Time struct {
	Secs    int64 `json:"secs"`
	Nsecs   int64 `json:"nsecs"`
	Sec     int64 `json:"sec"`
	Nanosec int64 `json:"nanosec"`
}

// Time converts the stamp to a time.Time. A zero stamp yields the zero time.
func (t Time) Time() time.Time {
	secs, nsecs := t.Secs, t.Nsecs
	if secs == 0 && nsecs == 0 {
		secs, nsecs = t.Sec, t.Nanosec
	}
	if secs == 0 && nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point (and Point32, Vector3).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// MapMetaData is nav_msgs/MapMetaData.
type MapMetaData struct {
	MapLoadTime Time    `json:"map_load_time"`
	Resolution  float64 `json:"resolution"`
	Width       uint32  `json:"width"`
	Height      uint32  `json:"height"`
	Origin      Pose    `json:"origin"`
}

// OccupancyGrid is nav_msgs/OccupancyGrid, the full costmap snapshot.
type OccupancyGrid struct {
	Header Header      `json:"header"`
	Info   MapMetaData `json:"info"`
	Data   []int8      `json:"data"`
}

// OccupancyGridUpdate is map_msgs/OccupancyGridUpdate, a windowed patch of the costmap.
type OccupancyGridUpdate struct {
	Header Header `json:"header"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Data   []int8 `json:"data"`
}

// Polygon is geometry_msgs/Polygon.
type Polygon struct {
	Points []Point `json:"points"`
}

// PolygonStamped is geometry_msgs/PolygonStamped, the robot footprint.
type PolygonStamped struct {
	Header  Header  `json:"header"`
	Polygon Polygon `json:"polygon"`
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation Point      `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped is geometry_msgs/TransformStamped.
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// TFMessage is tf2_msgs/TFMessage, carried on the tf and tf_static topics.
type TFMessage struct {
	Transforms []TransformStamped `json:"transforms"`
}

// ToSnapshot converts the grid into a costmap snapshot. Only the origin position is used; grid
// rotation is not supported.
func (m *OccupancyGrid) ToSnapshot() *costmap.Snapshot {
	return &costmap.Snapshot{
		Frame:      StripLeadingSlash(m.Header.FrameID),
		Stamp:      m.Header.Stamp.Time(),
		Resolution: m.Info.Resolution,
		Width:      int(m.Info.Width),
		Height:     int(m.Info.Height),
		OriginX:    m.Info.Origin.Position.X,
		OriginY:    m.Info.Origin.Position.Y,
		Data:       m.Data,
	}
}

// ToWindow converts the update into a costmap window.
func (m *OccupancyGridUpdate) ToWindow() *costmap.Window {
	return &costmap.Window{
		Frame:  StripLeadingSlash(m.Header.FrameID),
		Stamp:  m.Header.Stamp.Time(),
		X:      int(m.X),
		Y:      int(m.Y),
		Width:  int(m.Width),
		Height: int(m.Height),
		Data:   m.Data,
	}
}

// ToPolygon converts the footprint message into a footprint polygon, dropping z.
func (m *PolygonStamped) ToPolygon() footprint.Polygon {
	return lo.Map(m.Polygon.Points, func(p Point, _ int) r2.Point {
		return r2.Point{X: p.X, Y: p.Y}
	})
}

// ToStampedTransforms converts every transform of the message.
func (m *TFMessage) ToStampedTransforms() []referenceframe.StampedTransform {
	return lo.Map(m.Transforms, func(tf TransformStamped, _ int) referenceframe.StampedTransform {
		rot := tf.Transform.Rotation
		return referenceframe.StampedTransform{
			Parent: StripLeadingSlash(tf.Header.FrameID),
			Child:  StripLeadingSlash(tf.ChildFrameID),
			Stamp:  tf.Header.Stamp.Time(),
			Transform: spatialmath.NewPose(
				r3.Vector{X: tf.Transform.Translation.X, Y: tf.Transform.Translation.Y, Z: tf.Transform.Translation.Z},
				spatialmath.NewQuaternion(rot.W, rot.X, rot.Y, rot.Z),
			),
		}
	})
}

func decode[T any](kind string, payload []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s message", kind)
	}
	return &msg, nil
}

// DecodeOccupancyGrid decodes a JSON encoded nav_msgs/OccupancyGrid.
func DecodeOccupancyGrid(payload []byte) (*OccupancyGrid, error) {
	return decode[OccupancyGrid]("nav_msgs/OccupancyGrid", payload)
}

// DecodeOccupancyGridUpdate decodes a JSON encoded map_msgs/OccupancyGridUpdate.
func DecodeOccupancyGridUpdate(payload []byte) (*OccupancyGridUpdate, error) {
	return decode[OccupancyGridUpdate]("map_msgs/OccupancyGridUpdate", payload)
}

// DecodePolygonStamped decodes a JSON encoded geometry_msgs/PolygonStamped.
func DecodePolygonStamped(payload []byte) (*PolygonStamped, error) {
	return decode[PolygonStamped]("geometry_msgs/PolygonStamped", payload)
}

// DecodeTFMessage decodes a JSON encoded tf2_msgs/TFMessage.
func DecodeTFMessage(payload []byte) (*TFMessage, error) {
	return decode[TFMessage]("tf2_msgs/TFMessage", payload)
}
