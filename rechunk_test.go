package cloudstage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra-io/cloudstage/cloudtypes"
)

func TestRechunk(t *testing.T) {
	type sub struct {
		offset int64
		length int64
	}

	tests := []struct {
		name        string
		length      int64
		maxPartSize int64
		want        []sub
	}{
		{
			name:        "exactly the cap",
			length:      100,
			maxPartSize: 100,
			want:        []sub{{0, 100}},
		},
		{
			name:        "even split at half",
			length:      100,
			maxPartSize: 50,
			want:        []sub{{0, 50}, {50, 50}},
		},
		{
			name:        "count grows until it divides evenly",
			length:      100,
			maxPartSize: 40,
			want:        []sub{{0, 25}, {25, 25}, {50, 25}, {75, 25}},
		},
		{
			name:        "just above half the length",
			length:      100,
			maxPartSize: 51,
			want:        []sub{{0, 50}, {50, 50}},
		},
		{
			name:        "just below half the length",
			length:      100,
			maxPartSize: 49,
			want:        []sub{{0, 25}, {25, 25}, {50, 25}, {75, 25}},
		},
		{
			name:        "just below the length",
			length:      100,
			maxPartSize: 99,
			want:        []sub{{0, 50}, {50, 50}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cloudtypes.ChunkRecord{
				Path:   "uploads/u/0000000000000000",
				Offset: 0,
				Length: tt.length,
			}

			got := rechunk(rec, tt.maxPartSize)

			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, rec.Path, got[i].Path)
				assert.Equal(t, want.offset, got[i].Offset, "sub-record %d offset", i)
				assert.Equal(t, want.length, got[i].Length, "sub-record %d length", i)
			}
		})
	}
}

func TestRechunk_PreservesBaseOffset(t *testing.T) {
	rec := cloudtypes.ChunkRecord{
		Path:   "uploads/u/0000000000001000",
		Offset: 1000,
		Length: 100,
	}

	got := rechunk(rec, 50)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Offset)
	assert.Equal(t, int64(1050), got[1].Offset)
}

func TestRechunk_CoversRecordExactly(t *testing.T) {
	lengths := []int64{1, 2, 97, 100, 1000, 4096}
	caps := []int64{1, 3, 7, 50, 100, 5000}

	for _, length := range lengths {
		for _, maxPart := range caps {
			rec := cloudtypes.ChunkRecord{
				Path:   "uploads/u/0000000000000000",
				Offset: 64,
				Length: length,
			}

			subs := rechunk(rec, maxPart)

			next := rec.Offset
			var total int64
			for _, s := range subs {
				assert.Equal(t, next, s.Offset, "length=%d cap=%d", length, maxPart)
				assert.Positive(t, s.Length, "length=%d cap=%d", length, maxPart)
				assert.LessOrEqual(t, s.Length, maxPart, "length=%d cap=%d", length, maxPart)
				next = s.End()
				total += s.Length
			}
			assert.Equal(t, rec.Length, total, "length=%d cap=%d", length, maxPart)
		}
	}
}
