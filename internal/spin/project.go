package spin

import (
	"math"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
)

// projectSphere maps the visible hemisphere of the ball through a candidate
// rotation and re-projects it onto the image plane. Pixels with no source
// (off the sphere, or rotated onto the far hemisphere) stay at the ignore
// sentinel so comparisons skip them. src is the row-major pixel data of a
// rows x cols single-channel image with the ball centered at b.
//
// The X axis is negated here so that positive X spin reads as backspin for a
// ball flying toward the camera; Y and Z follow the right-hand convention.
func projectSphere(src []uint8, rows, cols int, b ball.Ball, rot Rotation) []uint8 {
	xRad := -cvutil.DegToRad(float64(rot.X))
	yRad := cvutil.DegToRad(float64(rot.Y))
	zRad := cvutil.DegToRad(float64(rot.Z))
	sinX, cosX := math.Sincos(xRad)
	sinY, cosY := math.Sincos(yRad)
	sinZ, cosZ := math.Sincos(zRad)

	// Skipping near-zero rotations keeps the identity candidate an exact
	// copy instead of a resampled one.
	rotX := math.Abs(xRad) > 0.001
	rotY := math.Abs(yRad) > 0.001
	rotZ := math.Abs(zRad) > 0.001

	cx := b.X
	cy := b.Y
	r2 := b.MeasuredRadius * b.MeasuredRadius

	out := make([]uint8, rows*cols)
	for i := range out {
		out[i] = ignoreValue
	}

	for y := 0; y < rows; y++ {
		fy := float64(y) - cy
		for x := 0; x < cols; x++ {
			fx := float64(x) - cx
			zsq := r2 - fx*fx - fy*fy
			if zsq < 0 {
				continue
			}
			px, py, pz := fx, fy, math.Sqrt(zsq)
			if rotX {
				py, pz = py*cosX-pz*sinX, math.Trunc(py*sinX+pz*cosX)
			}
			if rotY {
				px, pz = px*cosY+pz*sinY, math.Trunc(pz*cosY-px*sinY)
			}
			if rotZ {
				px, py = px*cosZ-py*sinZ, px*sinZ+py*cosZ
			}
			if pz <= 0 {
				continue
			}
			nx := int(px + cx + 0.5)
			ny := int(py + cy + 0.5)
			if nx < 0 || nx >= cols || ny < 0 || ny >= rows {
				continue
			}
			out[ny*cols+nx] = src[y*cols+x]
		}
	}
	return out
}
