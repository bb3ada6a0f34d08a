package ros

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/costmapclient/costmap"
	"go.viam.com/costmapclient/footprint"
	"go.viam.com/costmapclient/spatialmath"
)

func TestDecodeOccupancyGrid(t *testing.T) {
	msg, err := DecodeOccupancyGrid([]byte(`{
		"header": {"seq": 3, "stamp": {"secs": 12, "nsecs": 500}, "frame_id": "/map"},
		"info": {
			"resolution": 0.05, "width": 3, "height": 2,
			"origin": {"position": {"x": -1.5, "y": 2.0, "z": 0}, "orientation": {"x": 0, "y": 0, "z": 0, "w": 1}}
		},
		"data": [0, 100, -1, 50, 0, 0]
	}`))
	test.That(t, err, test.ShouldBeNil)

	snap := msg.ToSnapshot()
	test.That(t, snap.Frame, test.ShouldEqual, "map")
	test.That(t, snap.Stamp, test.ShouldEqual, time.Unix(12, 500))
	test.That(t, snap.Resolution, test.ShouldEqual, 0.05)
	test.That(t, snap.Width, test.ShouldEqual, 3)
	test.That(t, snap.Height, test.ShouldEqual, 2)
	test.That(t, snap.OriginX, test.ShouldEqual, -1.5)
	test.That(t, snap.OriginY, test.ShouldEqual, 2.0)
	test.That(t, snap.Data, test.ShouldResemble, []int8{0, 100, -1, 50, 0, 0})
	test.That(t, snap.Validate(), test.ShouldBeNil)
}

func TestDecodeROS2Stamp(t *testing.T) {
	msg, err := DecodeOccupancyGridUpdate([]byte(`{
		"header": {"stamp": {"sec": 7, "nanosec": 9}, "frame_id": "map"},
		"x": 4, "y": 5, "width": 1, "height": 2, "data": [100, -1]
	}`))
	test.That(t, err, test.ShouldBeNil)
	w := msg.ToWindow()
	test.That(t, w.Stamp, test.ShouldEqual, time.Unix(7, 9))
	test.That(t, w.X, test.ShouldEqual, 4)
	test.That(t, w.Y, test.ShouldEqual, 5)
	test.That(t, w.Width, test.ShouldEqual, 1)
	test.That(t, w.Height, test.ShouldEqual, 2)
	test.That(t, w.Data, test.ShouldResemble, []int8{100, -1})

	test.That(t, Time{}.Time().IsZero(), test.ShouldBeTrue)
}

func TestDecodeRejectsOutOfRangeSizes(t *testing.T) {
	_, err := DecodeOccupancyGrid([]byte(`{"info": {"resolution": 1, "width": -1, "height": 1}}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = DecodeOccupancyGridUpdate([]byte(`{"x": 2147483648, "y": 0, "width": 1, "height": 1, "data": [0]}`))
	test.That(t, err, test.ShouldNotBeNil)

	// Widths that decode fine can still overflow the cell count once multiplied.
	msg, err := DecodeOccupancyGrid([]byte(`{"info": {"resolution": 1, "width": 4294967295, "height": 4294967295}}`))
	test.That(t, err, test.ShouldBeNil)
	err = msg.ToSnapshot().Validate()
	test.That(t, errors.Is(err, costmap.ErrMalformedSnapshot), test.ShouldBeTrue)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeOccupancyGrid([]byte(`{"data": [300]}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, OccupancyGridType)

	_, err = DecodePolygonStamped([]byte(`not json`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPolygonStampedToPolygon(t *testing.T) {
	msg, err := DecodePolygonStamped([]byte(`{
		"header": {"frame_id": "base_link"},
		"polygon": {"points": [{"x": 0.3, "y": 0.3, "z": 0}, {"x": -0.3, "y": 0.3, "z": 1}]}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.ToPolygon(), test.ShouldResemble, footprint.Polygon{{X: 0.3, Y: 0.3}, {X: -0.3, Y: 0.3}})

	empty := PolygonStamped{}
	test.That(t, empty.ToPolygon(), test.ShouldHaveLength, 0)
}

func TestTFMessageToStampedTransforms(t *testing.T) {
	s := math.Sin(math.Pi / 4)
	msg, err := DecodeTFMessage([]byte(`{"transforms": [{
		"header": {"stamp": {"secs": 5, "nsecs": 0}, "frame_id": "odom"},
		"child_frame_id": "/base_link",
		"transform": {"translation": {"x": 1, "y": 2, "z": 0}, "rotation": {"x": 0, "y": 0, "z": ` +
		formatFloat(s) + `, "w": ` + formatFloat(s) + `}}
	}]}`))
	test.That(t, err, test.ShouldBeNil)

	tfs := msg.ToStampedTransforms()
	test.That(t, tfs, test.ShouldHaveLength, 1)
	test.That(t, tfs[0].Parent, test.ShouldEqual, "odom")
	test.That(t, tfs[0].Child, test.ShouldEqual, "base_link")
	test.That(t, tfs[0].Stamp, test.ShouldEqual, time.Unix(5, 0))
	test.That(t, tfs[0].Transform.Point().X, test.ShouldEqual, 1.0)
	test.That(t, tfs[0].Transform.Point().Y, test.ShouldEqual, 2.0)
	test.That(t, spatialmath.Yaw(tfs[0].Transform.Orientation()), test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func TestNormalizeTopic(t *testing.T) {
	test.That(t, NormalizeTopic("costmap"), test.ShouldEqual, "/costmap")
	test.That(t, NormalizeTopic("/move_base/costmap"), test.ShouldEqual, "/move_base/costmap")
	test.That(t, NormalizeTopic(" "), test.ShouldEqual, "")
	test.That(t, StripLeadingSlash("/map"), test.ShouldEqual, "map")
}
