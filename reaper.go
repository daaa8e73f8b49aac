package cloudstage

import (
	"context"
	"time"

	"github.com/docker/go-units"

	"github.com/calyptra-io/cloudstage/cloudtypes"
	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// CleanPartialUploads deletes staging objects whose age is at least maxAge,
// reclaiming the space left behind by uploads that were never completed or
// cancelled. Keys are handled independently: a failed deletion is logged,
// counted, and skipped so one bad object cannot stall the sweep. A staging
// namespace with nothing in it is a no-op.
//
// The returned result is valid even when an error is returned; it covers
// the keys walked before the listing failed.
func (s *Store) CleanPartialUploads(ctx context.Context, maxAge time.Duration) (*cloudtypes.SweepResult, error) {
	if maxAge < 0 {
		return nil, cserrors.NewError("cleanPartialUploads", cserrors.ErrInvalidInput).
			WithMessage("maxAge cannot be negative")
	}

	cutoff := time.Now().Add(-maxAge)
	result := &cloudtypes.SweepResult{}

	err := s.backend.List(ctx, s.initPath(stagingPrefix), func(info driver.ObjectInfo) error {
		result.Scanned++
		if info.LastModified.After(cutoff) {
			return nil
		}

		if err := s.backend.Delete(ctx, info.Key); err != nil {
			result.Failed++
			s.logger.Warnf("Could not delete stale upload object %s: %s", info.Key, err)
			return nil
		}

		result.Deleted++
		result.ReclaimedBytes += info.Size
		s.logger.Debugf("Deleted stale upload object %s (%s)",
			info.Key, units.HumanSize(float64(info.Size)))
		return nil
	})
	if err != nil {
		return result, err
	}

	s.logger.Infof("Upload sweep done: %d scanned, %d deleted, %d failed, %s reclaimed",
		result.Scanned, result.Deleted, result.Failed,
		units.HumanSizeWithPrecision(float64(result.ReclaimedBytes), 3))
	return result, nil
}
