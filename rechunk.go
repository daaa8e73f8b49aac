package cloudstage

import "github.com/calyptra-io/cloudstage/cloudtypes"

// rechunk splits a chunk record into sub-records no longer than maxPartSize
// so each can ride a single backend part copy. A record already within the
// cap comes back unchanged as a one-element slice.
//
// Oversized records split into equal contiguous pieces: starting from the
// fewest pieces that respect the cap, the piece count grows until it
// divides the length evenly. Equal pieces keep every sub-record well clear
// of the backend's minimum part size, which a ragged final remainder could
// violate.
func rechunk(rec cloudtypes.ChunkRecord, maxPartSize int64) []cloudtypes.ChunkRecord {
	if rec.Length <= maxPartSize {
		return []cloudtypes.ChunkRecord{rec}
	}

	count := rec.Length / maxPartSize
	if rec.Length%maxPartSize != 0 {
		count++
	}
	for rec.Length%count != 0 {
		count++
	}

	subLength := rec.Length / count
	subs := make([]cloudtypes.ChunkRecord, 0, count)
	for i := int64(0); i < count; i++ {
		subs = append(subs, cloudtypes.ChunkRecord{
			Path:   rec.Path,
			Offset: rec.Offset + i*subLength,
			Length: subLength,
		})
	}
	return subs
}
