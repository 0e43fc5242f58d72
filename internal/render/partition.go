package render

import "github.com/hardwarehavoc/fractile/internal/model"

// Partition enumerates the full image grid as tiles in raster-scan order
// (rows outer, columns inner) and assigns each its global index in that
// single enumeration. The index is the tile's public identity: executors
// carry it through to task records unchanged, independent of how the tile
// sequence is later split among workers. Tiles keep the requested W/H even
// when they overrun the right or bottom edge; clipping happens at render
// time.
func Partition(width, height, tileW, tileH int) []model.Tile {
	cols := (width + tileW - 1) / tileW
	rows := (height + tileH - 1) / tileH

	tiles := make([]model.Tile, 0, cols*rows)
	idx := uint32(0)
	for y := 0; y < height; y += tileH {
		for x := 0; x < width; x += tileW {
			tiles = append(tiles, model.Tile{Index: idx, X: x, Y: y, W: tileW, H: tileH})
			idx++
		}
	}
	return tiles
}
