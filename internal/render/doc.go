// Package render computes escape-time fractal rasters tile by tile.
// It partitions the image into raster-ordered tiles, evaluates them either
// sequentially or across a fixed pool of workers under a shared wall-clock
// budget, and streams results to a caller-supplied sink in ascending
// tile-index order regardless of completion order.
package render
