package cloudstage

import (
	"context"

	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/validation"
)

// CopyTo copies the object at relPath into dest under the same relative
// path, resolved against dest's own root. When dest's backend can address
// this store's backend directly (same endpoint and credentials) the bytes
// move in a single server-side copy; otherwise they stream through this
// process with bounded memory.
//
// Failures name the failing side: "copy.read" for the source,
// "copy.write" for a streamed destination write, and "copy.server" for a
// failed server-side copy.
func (s *Store) CopyTo(ctx context.Context, dest *Store, relPath string) error {
	if err := validation.ValidatePath(relPath); err != nil {
		return err
	}

	srcKey := s.initPath(relPath)
	dstKey := dest.initPath(relPath)

	if dest.backend.CanCopyFrom(s.backend) {
		if err := dest.backend.Copy(ctx, s.backend.Bucket(), srcKey, dstKey); err != nil {
			return cserrors.NewPathError("copy.server", dest.backend.Bucket(), relPath, err)
		}
		return nil
	}

	info, err := s.backend.Stat(ctx, srcKey)
	if err != nil {
		return cserrors.NewPathError("copy.read", s.backend.Bucket(), relPath, err)
	}

	body, err := s.backend.Get(ctx, srcKey)
	if err != nil {
		return cserrors.NewPathError("copy.read", s.backend.Bucket(), relPath, err)
	}
	defer func() { _ = body.Close() }()

	if _, err := dest.streamWriteInternal(ctx, dstKey, body, info.Size, "", true); err != nil {
		return cserrors.NewPathError("copy.write", dest.backend.Bucket(), relPath, err)
	}
	return nil
}
