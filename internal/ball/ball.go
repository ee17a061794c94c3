// Package ball holds the shared data model for ball localization and spin
// analysis: circles produced by the search primitives and the balls built
// from them.
package ball

import "math"

// RGB is a color triplet in OpenCV channel order (B, G, R).
type RGB [3]float64

// IsZero reports whether no color information has been set.
func (c RGB) IsZero() bool {
	return c[0] == 0 && c[1] == 0 && c[2] == 0
}

// Circle is the atomic unit produced by a circle search.
type Circle struct {
	X      float64
	Y      float64
	Radius float64
}

// Ball describes one localized (or reference) golf ball.
type Ball struct {
	X              float64
	Y              float64
	MeasuredRadius float64
	Circle         Circle

	AvgColor    RGB
	MedianColor RGB
	StdColor    RGB

	// QualityRank is the ball's position in the final ranked candidate
	// list. 0 is the best match.
	QualityRank int

	// CameraAngles is the camera's (x, y) ortho-perspective viewing-angle
	// pair in degrees at capture time, used to deskew the two views before
	// spin correlation.
	CameraAngles [2]float64
}

// SetCircle assigns the circle and keeps the derived position and radius
// fields coherent with it.
func (b *Ball) SetCircle(c Circle) {
	b.Circle = c
	b.X = c.X
	b.Y = c.Y
	b.MeasuredRadius = c.Radius
}

// Contains reports whether the image point (x, y) lies inside the ball.
func (b *Ball) Contains(x, y float64) bool {
	dx := x - b.X
	dy := y - b.Y
	return math.Sqrt(dx*dx+dy*dy) <= b.MeasuredRadius
}
