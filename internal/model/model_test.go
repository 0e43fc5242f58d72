package model

import (
	"encoding/json"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
		{"bogus", StatusRunning, false},
	}
	for _, tc := range tests {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidMode(t *testing.T) {
	if !ValidMode(ModeSequential) || !ValidMode(ModeConcurrent) {
		t.Error("expected sequential and concurrent to be valid modes")
	}
	if ValidMode("threaded") {
		t.Error("expected unknown mode to be invalid")
	}
}

func TestTileUpdateRecord(t *testing.T) {
	u := TileUpdate{
		TaskID:     7,
		Tile:       Tile{Index: 7, X: 64, Y: 128, W: 64, H: 64},
		Data:       make([]uint16, 64*32), // clipped tile
		DurationMS: 12,
	}

	rec := u.Record()
	if rec.TaskID != 7 {
		t.Errorf("TaskID = %d, want 7", rec.TaskID)
	}
	if rec.Tile != u.Tile {
		t.Errorf("Tile = %+v, want %+v", rec.Tile, u.Tile)
	}
	if rec.DurationMS != 12 {
		t.Errorf("DurationMS = %d, want 12", rec.DurationMS)
	}
	if rec.PixelsComputed != 64*32 {
		t.Errorf("PixelsComputed = %d, want %d", rec.PixelsComputed, 64*32)
	}
}

func TestTaskRecordJSONFieldNames(t *testing.T) {
	rec := TaskRecord{
		TaskID:         3,
		Tile:           Tile{Index: 3, X: 2, Y: 0, W: 2, H: 2},
		DurationMS:     5,
		PixelsComputed: 4,
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"task_id", "tile", "duration_ms", "pixels_computed"} {
		if _, ok := m[key]; !ok {
			t.Errorf("marshaled record missing %q field", key)
		}
	}
}
