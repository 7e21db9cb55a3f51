package mission

import (
	"math/rand"
)

// DrawItem places a single item in the world.
type DrawItem struct {
	X    int    `xml:"x,attr"`
	Y    int    `xml:"y,attr"`
	Z    int    `xml:"z,attr"`
	Type string `xml:"type,attr"`
}

// GenerateItems scatters count items uniformly over the square arena
// [-halfWidth, halfWidth] on both axes, dropped from dropHeight.
func GenerateItems(rng *rand.Rand, count, halfWidth, dropHeight int, types []string) []DrawItem {
	if count <= 0 || len(types) == 0 {
		return nil
	}
	if halfWidth < 0 {
		halfWidth = -halfWidth
	}
	span := 2*halfWidth + 1
	items := make([]DrawItem, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, DrawItem{
			X:    rng.Intn(span) - halfWidth,
			Y:    dropHeight,
			Z:    rng.Intn(span) - halfWidth,
			Type: types[rng.Intn(len(types))],
		})
	}
	return items
}
