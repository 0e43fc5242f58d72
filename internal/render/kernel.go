package render

// Fixed viewport for the coordinate mapping from pixel space to the
// complex plane: re spans [-2.5, 1.0), im spans [-1.0, 1.0).
const (
	viewReSpan   = 3.5
	viewReOffset = -2.5
	viewImSpan   = 2.0
	viewImOffset = -1.0
)

// Mandelbrot iterates z <- z^2 + c from z = 0 and returns the iteration
// index at which |z|^2 first exceeds 4.0, or maxIter if no escape occurs.
// A point outside the radius-2 disc escapes on the first iteration and
// yields 0. Deterministic and total over its input domain.
func Mandelbrot(cRe, cIm float64, maxIter uint16) uint16 {
	var zRe, zIm float64
	for i := uint16(0); i < maxIter; i++ {
		zRe, zIm = zRe*zRe-zIm*zIm+cRe, 2*zRe*zIm+cIm
		if zRe*zRe+zIm*zIm > 4.0 {
			return i
		}
	}
	return maxIter
}

// RenderTile evaluates the kernel over one tile in row-major order and
// returns the iteration counts. Rows at or beyond the image height are
// omitted entirely; trailing columns beyond the image width are omitted
// per row, so edge tiles yield buffers shorter than tileW*tileH.
func RenderTile(width, height, tileX, tileY, tileW, tileH int, maxIter uint16) []uint16 {
	buf := make([]uint16, 0, tileW*tileH)
	for dy := 0; dy < tileH; dy++ {
		py := tileY + dy
		if py >= height {
			break
		}
		cIm := float64(py)/float64(height)*viewImSpan + viewImOffset
		for dx := 0; dx < tileW; dx++ {
			px := tileX + dx
			if px >= width {
				break
			}
			cRe := float64(px)/float64(width)*viewReSpan + viewReOffset
			buf = append(buf, Mandelbrot(cRe, cIm, maxIter))
		}
	}
	return buf
}
