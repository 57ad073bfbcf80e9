package domain

import (
	"fmt"
	"sort"
)

// GridNode is an Ionospheric Grid Point as declared by a TEC map.
// Coordinates are compared exactly; no rounding is applied.
type GridNode struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the node for logs and error messages.
func (n GridNode) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", n.Lat, n.Lon)
}

// Corner indexes into the fixed four-corner ordering used by the interpolator.
const (
	CornerNE = iota
	CornerNW
	CornerSW
	CornerSE
)

// BoundingBox is the rectangle of declared grid lines enclosing a target.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Corners returns the four IGPs in NE, NW, SW, SE order.
func (b BoundingBox) Corners() [4]GridNode {
	return [4]GridNode{
		{Lat: b.North, Lon: b.East},
		{Lat: b.North, Lon: b.West},
		{Lat: b.South, Lon: b.West},
		{Lat: b.South, Lon: b.East},
	}
}

// Contains reports whether (lat, lon) lies inside or on the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// TECSeries maps each epoch to the raw integer TEC value recorded at one node.
type TECSeries map[Epoch]int

// Epochs returns the series epochs in chronological order.
func (s TECSeries) Epochs() []Epoch {
	epochs := make([]Epoch, 0, len(s))
	for e := range s {
		epochs = append(epochs, e)
	}
	SortEpochs(epochs)
	return epochs
}

// DelaySeries maps each epoch to a delay in meters.
type DelaySeries map[Epoch]float64

// Epochs returns the series epochs in chronological order.
func (s DelaySeries) Epochs() []Epoch {
	epochs := make([]Epoch, 0, len(s))
	for e := range s {
		epochs = append(epochs, e)
	}
	SortEpochs(epochs)
	return epochs
}

// SortEpochs sorts epochs in place, oldest first.
func SortEpochs(epochs []Epoch) {
	sort.Slice(epochs, func(i, j int) bool {
		return epochs[i].Before(epochs[j])
	})
}

// IonosphericCoefficients holds the Klobuchar broadcast parameters.
type IonosphericCoefficients struct {
	Alpha [4]float64 `json:"alpha"`
	Beta  [4]float64 `json:"beta"`
}
