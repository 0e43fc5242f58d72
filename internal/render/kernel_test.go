package render

import "testing"

func TestMandelbrotOriginNeverEscapes(t *testing.T) {
	for _, maxIter := range []uint16{1, 10, 256, 65535} {
		if got := Mandelbrot(0, 0, maxIter); got != maxIter {
			t.Errorf("Mandelbrot(0, 0, %d) = %d, want %d", maxIter, got, maxIter)
		}
	}
}

func TestMandelbrotImmediateEscape(t *testing.T) {
	// Points outside the radius-2 disc escape on the first iteration.
	points := []struct{ re, im float64 }{
		{3, 0},
		{0, 3},
		{-2.5, 1},
		{2, 2},
		{-3, -3},
	}
	for _, p := range points {
		if got := Mandelbrot(p.re, p.im, 100); got != 0 {
			t.Errorf("Mandelbrot(%v, %v, 100) = %d, want 0", p.re, p.im, got)
		}
	}
}

func TestMandelbrotDeterministic(t *testing.T) {
	a := Mandelbrot(-0.75, 0.1, 1000)
	for i := 0; i < 10; i++ {
		if b := Mandelbrot(-0.75, 0.1, 1000); b != a {
			t.Fatalf("Mandelbrot not deterministic: %d then %d", a, b)
		}
	}
}

func TestRenderTileInterior(t *testing.T) {
	buf := RenderTile(4, 4, 0, 0, 2, 2, 10)
	if len(buf) != 4 {
		t.Fatalf("interior tile buffer length = %d, want 4", len(buf))
	}
}

func TestRenderTileClipping(t *testing.T) {
	// 5x3 image, 2x2 tiles: right-edge tiles have 1 in-bounds column,
	// bottom-row tiles have 1 in-bounds row.
	tests := []struct {
		x, y    int
		wantLen int
	}{
		{0, 0, 4},
		{2, 0, 4},
		{4, 0, 2}, // 1 col x 2 rows
		{0, 2, 2}, // 2 cols x 1 row
		{2, 2, 2},
		{4, 2, 1}, // 1 col x 1 row
	}
	for _, tc := range tests {
		buf := RenderTile(5, 3, tc.x, tc.y, 2, 2, 10)
		if len(buf) != tc.wantLen {
			t.Errorf("RenderTile(5, 3, %d, %d, 2, 2) length = %d, want %d",
				tc.x, tc.y, len(buf), tc.wantLen)
		}
	}
}

func TestRenderTileFullyOutOfBounds(t *testing.T) {
	if buf := RenderTile(4, 4, 4, 4, 2, 2, 10); len(buf) != 0 {
		t.Errorf("out-of-bounds tile buffer length = %d, want 0", len(buf))
	}
}

func TestRenderTileMatchesKernel(t *testing.T) {
	const width, height = 8, 8
	buf := RenderTile(width, height, 2, 4, 3, 2, 50)
	i := 0
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 3; dx++ {
			px, py := 2+dx, 4+dy
			cRe := float64(px)/float64(width)*3.5 - 2.5
			cIm := float64(py)/float64(height)*2.0 - 1.0
			if want := Mandelbrot(cRe, cIm, 50); buf[i] != want {
				t.Errorf("buf[%d] (pixel %d,%d) = %d, want %d", i, px, py, buf[i], want)
			}
			i++
		}
	}
	if i != len(buf) {
		t.Errorf("buffer length = %d, want %d", len(buf), i)
	}
}
