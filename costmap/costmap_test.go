package costmap

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestTranslateOccupancy(t *testing.T) {
	for _, tc := range []struct {
		in   int8
		want uint8
	}{
		{OccupancyUnknown, NoInformation},
		{OccupancyFree, FreeSpace},
		{1, 1},
		{50, 1 + (251*49)/97},
		{98, 252},
		{99, InscribedInflatedObstacle},
		{OccupancyOccupied, LethalObstacle},
		{101, NoInformation},
		{-50, NoInformation},
	} {
		test.That(t, TranslateOccupancy(tc.in), test.ShouldEqual, tc.want)
	}
}

func TestWorldMapConversion(t *testing.T) {
	cm := NewCostmap2D(10, 20, 0.05, -1, 2, FreeSpace)
	test.That(t, cm.SizeInMetersX(), test.ShouldAlmostEqual, 0.5)
	test.That(t, cm.SizeInMetersY(), test.ShouldAlmostEqual, 1.0)

	wx, wy := cm.MapToWorld(3, 7)
	test.That(t, wx, test.ShouldAlmostEqual, -1+3.5*0.05)
	test.That(t, wy, test.ShouldAlmostEqual, 2+7.5*0.05)
	mx, my, ok := cm.WorldToMap(wx, wy)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mx, test.ShouldEqual, 3)
	test.That(t, my, test.ShouldEqual, 7)

	_, _, ok = cm.WorldToMap(-1.01, 2.1)
	test.That(t, ok, test.ShouldBeFalse)
	_, _, ok = cm.WorldToMap(-0.5, 2.1)
	test.That(t, ok, test.ShouldBeFalse)

	mx, my = cm.WorldToMapEnforceBounds(-5, 100)
	test.That(t, mx, test.ShouldEqual, 0)
	test.That(t, my, test.ShouldEqual, 19)

	idx := cm.Index(4, 6)
	test.That(t, idx, test.ShouldEqual, 64)
	mx, my = cm.IndexToCells(idx)
	test.That(t, mx, test.ShouldEqual, 4)
	test.That(t, my, test.ShouldEqual, 6)
}

func TestSetCostBounds(t *testing.T) {
	cm := NewCostmap2D(3, 2, 1, 0, 0, NoInformation)
	test.That(t, cm.SetCost(2, 1, LethalObstacle), test.ShouldBeTrue)
	test.That(t, cm.Cost(2, 1), test.ShouldEqual, LethalObstacle)
	test.That(t, cm.SetCost(3, 1, LethalObstacle), test.ShouldBeFalse)
	test.That(t, cm.Cost(-1, 0), test.ShouldEqual, NoInformation)

	clone := cm.Clone()
	clone.SetCost(0, 0, FreeSpace)
	test.That(t, cm.Cost(0, 0), test.ShouldEqual, NoInformation)
}

func TestApplySnapshot(t *testing.T) {
	cm := NewCostmap2D(2, 2, 1, 0, 0, LethalObstacle)

	err := cm.ApplySnapshot(&Snapshot{Resolution: 0.1, Width: 3, Height: 2, OriginX: 1, OriginY: 2, Data: []int8{0, 100, -1, 99, 0, 0}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.SizeInCellsX(), test.ShouldEqual, 3)
	test.That(t, cm.SizeInCellsY(), test.ShouldEqual, 2)
	test.That(t, cm.Resolution(), test.ShouldEqual, 0.1)
	test.That(t, cm.OriginX(), test.ShouldEqual, 1.0)
	test.That(t, cm.OriginY(), test.ShouldEqual, 2.0)
	test.That(t, cm.Costs(), test.ShouldResemble,
		[]uint8{FreeSpace, LethalObstacle, NoInformation, InscribedInflatedObstacle, FreeSpace, FreeSpace})
}

func TestApplySnapshotRejectsMalformed(t *testing.T) {
	for _, s := range []Snapshot{
		{Resolution: 1, Width: 2, Height: 2, Data: []int8{0, 0, 0}},
		{Resolution: 1, Width: 2, Height: 2, Data: []int8{0, 0, 0, 0, 0}},
		{Resolution: 0, Width: 1, Height: 1, Data: []int8{0}},
		{Resolution: 1, Width: -1, Height: 1},
		{Resolution: 1, Width: 1 << 32, Height: 1 << 32},
		{Resolution: 1, Width: math.MaxInt, Height: 2, Data: []int8{0, 0}},
		{Resolution: 1, Width: math.MaxInt, Height: math.MaxInt},
	} {
		cm := NewCostmap2D(2, 1, 0.5, 3, 4, FreeSpace)
		cm.SetCost(1, 0, LethalObstacle)
		before := cm.Clone()

		err := cm.ApplySnapshot(&s)
		test.That(t, errors.Is(err, ErrMalformedSnapshot), test.ShouldBeTrue)
		test.That(t, cmp.Diff(before, cm, cmp.AllowUnexported(Costmap2D{})), test.ShouldBeEmpty)
	}
}

func TestApplyWindow(t *testing.T) {
	cm := NewCostmap2D(4, 3, 1, 0, 0, FreeSpace)
	before := cm.Costs()

	err := cm.ApplyWindow(&Window{X: 1, Y: 1, Width: 2, Height: 2, Data: []int8{100, 100, -1, 100}})
	test.That(t, err, test.ShouldBeNil)

	for my := 0; my < 3; my++ {
		for mx := 0; mx < 4; mx++ {
			switch {
			case mx == 1 && my == 2:
				test.That(t, cm.Cost(mx, my), test.ShouldEqual, NoInformation)
			case mx >= 1 && mx <= 2 && my >= 1:
				test.That(t, cm.Cost(mx, my), test.ShouldEqual, LethalObstacle)
			default:
				test.That(t, cm.Cost(mx, my), test.ShouldEqual, before[cm.Index(mx, my)])
			}
		}
	}
}

func TestApplyWindowRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		w    Window
		want error
	}{
		{"past right edge", Window{X: 3, Y: 0, Width: 2, Height: 1, Data: []int8{100, 100}}, ErrWindowOutOfBounds},
		{"past top edge", Window{X: 0, Y: 2, Width: 1, Height: 2, Data: []int8{100, 100}}, ErrWindowOutOfBounds},
		{"negative origin", Window{X: -1, Y: 0, Width: 1, Height: 1, Data: []int8{100}}, ErrWindowOutOfBounds},
		{"short data", Window{X: 0, Y: 0, Width: 2, Height: 2, Data: []int8{100}}, ErrMalformedWindow},
		{"negative size", Window{Width: -1, Height: 1}, ErrMalformedWindow},
		{"empty with data", Window{Width: 0, Height: 3, Data: []int8{1}}, ErrMalformedWindow},
		{"x near max int", Window{X: math.MaxInt, Y: 0, Width: 1, Height: 1, Data: []int8{100}}, ErrWindowOutOfBounds},
		{"y near max int", Window{X: 0, Y: math.MaxInt, Width: 1, Height: 1, Data: []int8{100}}, ErrWindowOutOfBounds},
		{"extent near max int", Window{X: 1, Y: 0, Width: math.MaxInt, Height: 1}, ErrMalformedWindow},
		{"x at edge", Window{X: 4, Y: 0, Width: 1, Height: 1, Data: []int8{100}}, ErrWindowOutOfBounds},
		{"cell count overflows", Window{Width: 1 << 32, Height: 1 << 32}, ErrMalformedWindow},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cm := NewCostmap2D(4, 3, 1, 0, 0, FreeSpace)
			cm.SetCost(2, 1, LethalObstacle)
			before := cm.Clone()
			err := cm.ApplyWindow(&tc.w)
			test.That(t, errors.Is(err, tc.want), test.ShouldBeTrue)
			test.That(t, cmp.Diff(before, cm, cmp.AllowUnexported(Costmap2D{})), test.ShouldBeEmpty)
		})
	}
}

func TestApplyWindowAfterRejectedHugeSnapshot(t *testing.T) {
	cm := NewCostmap2D(2, 2, 1, 0, 0, FreeSpace)
	err := cm.ApplySnapshot(&Snapshot{Resolution: 1, Width: 1 << 32, Height: 1 << 32})
	test.That(t, errors.Is(err, ErrMalformedSnapshot), test.ShouldBeTrue)
	test.That(t, cm.SizeInCellsX(), test.ShouldEqual, 2)
	test.That(t, cm.Costs(), test.ShouldHaveLength, 4)

	test.That(t, cm.ApplyWindow(&Window{X: 1, Y: 1, Width: 1, Height: 1, Data: []int8{100}}), test.ShouldBeNil)
	test.That(t, cm.Cost(1, 1), test.ShouldEqual, LethalObstacle)
}

func TestApplyWindowEmptyIsNoop(t *testing.T) {
	cm := NewCostmap2D(2, 2, 1, 0, 0, FreeSpace)
	test.That(t, cm.ApplyWindow(&Window{X: 10, Y: 10, Width: 0, Height: 5}), test.ShouldBeNil)
	test.That(t, cm.ApplyWindow(&Window{X: 0, Y: 0, Width: 2, Height: 0}), test.ShouldBeNil)
	test.That(t, cm.Costs(), test.ShouldResemble, []uint8{0, 0, 0, 0})
}

func TestOverlappingWindowsLaterWins(t *testing.T) {
	cm := NewCostmap2D(4, 4, 1, 0, 0, NoInformation)
	test.That(t, cm.ApplyWindow(&Window{X: 0, Y: 0, Width: 3, Height: 3, Data: []int8{0, 0, 0, 0, 0, 0, 0, 0, 0}}), test.ShouldBeNil)
	test.That(t, cm.ApplyWindow(&Window{X: 2, Y: 2, Width: 2, Height: 2, Data: []int8{100, 100, 100, 100}}), test.ShouldBeNil)

	test.That(t, cm.Cost(2, 2), test.ShouldEqual, LethalObstacle)
	test.That(t, cm.Cost(1, 1), test.ShouldEqual, FreeSpace)
	test.That(t, cm.Cost(2, 1), test.ShouldEqual, FreeSpace)
	test.That(t, cm.Cost(3, 3), test.ShouldEqual, LethalObstacle)
	test.That(t, cm.Cost(3, 0), test.ShouldEqual, NoInformation)
}
