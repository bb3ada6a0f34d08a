package costmap

// Occupancy values of the external encoding.
const (
	OccupancyUnknown  int8 = -1
	OccupancyFree     int8 = 0
	OccupancyOccupied int8 = 100
)

var costTranslationTable = func() [256]uint8 {
	var table [256]uint8
	// Unknown (-1, stored at index 255) and values outside [0, 100] carry no information.
	for i := range table {
		table[i] = NoInformation
	}
	table[0] = FreeSpace
	table[99] = InscribedInflatedObstacle
	table[100] = LethalObstacle
	// Map 1..98 linearly onto 1..252.
	for i := 1; i < 99; i++ {
		table[i] = uint8(1 + (251*(i-1))/97)
	}
	return table
}()

// TranslateOccupancy converts an occupancy value (-1 unknown, 0..100 probability of occupancy)
// into a cost.
func TranslateOccupancy(value int8) uint8 {
	return costTranslationTable[uint8(value)]
}
