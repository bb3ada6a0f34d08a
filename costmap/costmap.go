// Package costmap implements the 2D cost grid kept in sync by the costmap client: cell storage,
// world/map coordinate conversion and the occupancy-to-cost encoding.
package costmap

import (
	"math"
)

// Cost values stored in a Costmap2D.
const (
	FreeSpace                 uint8 = 0
	InscribedInflatedObstacle uint8 = 253
	LethalObstacle            uint8 = 254
	NoInformation             uint8 = 255
)

// Costmap2D is a row-major grid of costs anchored at a world origin. It is not safe for
// concurrent use; the owner serializes access.
type Costmap2D struct {
	sizeX      int
	sizeY      int
	resolution float64
	originX    float64
	originY    float64
	costs      []uint8
}

// NewCostmap2D returns a grid of sizeX by sizeY cells filled with defaultValue.
func NewCostmap2D(sizeX, sizeY int, resolution, originX, originY float64, defaultValue uint8) *Costmap2D {
	cm := &Costmap2D{}
	cm.ResizeMap(sizeX, sizeY, resolution, originX, originY)
	cm.Fill(defaultValue)
	return cm
}

// ResizeMap reallocates the grid to the new geometry. All cells are reset to FreeSpace.
func (cm *Costmap2D) ResizeMap(sizeX, sizeY int, resolution, originX, originY float64) {
	if sizeX < 0 {
		sizeX = 0
	}
	if sizeY < 0 {
		sizeY = 0
	}
	cm.sizeX = sizeX
	cm.sizeY = sizeY
	cm.resolution = resolution
	cm.originX = originX
	cm.originY = originY
	if cap(cm.costs) >= sizeX*sizeY {
		cm.costs = cm.costs[:sizeX*sizeY]
		clear(cm.costs)
	} else {
		cm.costs = make([]uint8, sizeX*sizeY)
	}
}

// Fill sets every cell to value.
func (cm *Costmap2D) Fill(value uint8) {
	for i := range cm.costs {
		cm.costs[i] = value
	}
}

// SizeInCellsX returns the width of the grid in cells.
func (cm *Costmap2D) SizeInCellsX() int { return cm.sizeX }

// SizeInCellsY returns the height of the grid in cells.
func (cm *Costmap2D) SizeInCellsY() int { return cm.sizeY }

// SizeInMetersX returns the width of the grid in meters.
func (cm *Costmap2D) SizeInMetersX() float64 { return float64(cm.sizeX) * cm.resolution }

// SizeInMetersY returns the height of the grid in meters.
func (cm *Costmap2D) SizeInMetersY() float64 { return float64(cm.sizeY) * cm.resolution }

// Resolution returns the edge length of a cell in meters.
func (cm *Costmap2D) Resolution() float64 { return cm.resolution }

// OriginX returns the world x coordinate of the grid's lower-left corner.
func (cm *Costmap2D) OriginX() float64 { return cm.originX }

// OriginY returns the world y coordinate of the grid's lower-left corner.
func (cm *Costmap2D) OriginY() float64 { return cm.originY }

// Index returns the buffer offset of cell (mx, my).
func (cm *Costmap2D) Index(mx, my int) int {
	return my*cm.sizeX + mx
}

// IndexToCells is the inverse of Index.
func (cm *Costmap2D) IndexToCells(index int) (int, int) {
	return index % cm.sizeX, index / cm.sizeX
}

// InBounds reports whether (mx, my) is a cell of the grid.
func (cm *Costmap2D) InBounds(mx, my int) bool {
	return mx >= 0 && my >= 0 && mx < cm.sizeX && my < cm.sizeY
}

// Cost returns the cost of cell (mx, my). Out of bounds cells report NoInformation.
func (cm *Costmap2D) Cost(mx, my int) uint8 {
	if !cm.InBounds(mx, my) {
		return NoInformation
	}
	return cm.costs[cm.Index(mx, my)]
}

// SetCost sets the cost of cell (mx, my). Out of bounds writes are ignored and reported false.
func (cm *Costmap2D) SetCost(mx, my int, cost uint8) bool {
	if !cm.InBounds(mx, my) {
		return false
	}
	cm.costs[cm.Index(mx, my)] = cost
	return true
}

// MapToWorld returns the world coordinates of the center of cell (mx, my).
func (cm *Costmap2D) MapToWorld(mx, my int) (float64, float64) {
	wx := cm.originX + (float64(mx)+0.5)*cm.resolution
	wy := cm.originY + (float64(my)+0.5)*cm.resolution
	return wx, wy
}

// WorldToMap returns the cell containing world point (wx, wy) and whether it lies on the grid.
func (cm *Costmap2D) WorldToMap(wx, wy float64) (int, int, bool) {
	if wx < cm.originX || wy < cm.originY || cm.resolution <= 0 {
		return 0, 0, false
	}
	mx := int(math.Floor((wx - cm.originX) / cm.resolution))
	my := int(math.Floor((wy - cm.originY) / cm.resolution))
	if mx >= cm.sizeX || my >= cm.sizeY {
		return 0, 0, false
	}
	return mx, my, true
}

// WorldToMapEnforceBounds is like WorldToMap but clamps points off the grid to the nearest cell.
func (cm *Costmap2D) WorldToMapEnforceBounds(wx, wy float64) (int, int) {
	clampCell := func(v float64, size int) int {
		c := int(math.Floor(v))
		if c < 0 {
			return 0
		}
		if c >= size {
			return size - 1
		}
		return c
	}
	if cm.resolution <= 0 {
		return 0, 0
	}
	return clampCell((wx-cm.originX)/cm.resolution, cm.sizeX), clampCell((wy-cm.originY)/cm.resolution, cm.sizeY)
}

// Costs returns a copy of the cost buffer in row-major order.
func (cm *Costmap2D) Costs() []uint8 {
	out := make([]uint8, len(cm.costs))
	copy(out, cm.costs)
	return out
}

// Clone returns a deep copy of the grid.
func (cm *Costmap2D) Clone() *Costmap2D {
	out := *cm
	out.costs = cm.Costs()
	return &out
}
