package model

// Tile is a rectangular sub-region of the output image, the unit of
// scheduling. Index is the tile's position in raster-scan order over the
// full grid (rows outer, columns inner), assigned once at partition time.
// W and H are the requested tile size; tiles overrunning the right or
// bottom image edge keep the requested size and are clipped at render time.
type Tile struct {
	Index uint32 `json:"index"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	W     int    `json:"w"`
	H     int    `json:"h"`
}

// TaskRecord is the durable per-tile timing record returned to the caller.
// It carries no pixel data. PixelsComputed counts the in-bounds pixels
// actually rendered, which is less than W*H for clipped edge tiles.
type TaskRecord struct {
	TaskID         uint32 `json:"task_id"`
	Tile           Tile   `json:"tile"`
	DurationMS     int64  `json:"duration_ms"`
	PixelsComputed int    `json:"pixels_computed"`
}

// TileUpdate is the transient value passed to a sink for each completed
// tile: the record fields plus the rendered pixel buffer (row-major
// iteration counts). Not retained after the sink call returns.
type TileUpdate struct {
	TaskID     uint32   `json:"task_id"`
	Tile       Tile     `json:"tile"`
	Data       []uint16 `json:"data"`
	DurationMS int64    `json:"duration_ms"`
}

// Record returns the durable TaskRecord for this update.
func (u TileUpdate) Record() TaskRecord {
	return TaskRecord{
		TaskID:         u.TaskID,
		Tile:           u.Tile,
		DurationMS:     u.DurationMS,
		PixelsComputed: len(u.Data),
	}
}
