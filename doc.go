// Package cloudstage implements resumable chunked uploads on top of
// S3-compatible object storage.
//
// A Store wraps a storage backend with a root path and offers two layers:
// plain object primitives (get, put, list, remove, stream read and write)
// and a chunked upload engine. The engine keeps no state of its own: callers
// stream data in arbitrarily sized pieces, persist the returned UploadSession
// between calls, and finally complete the upload into a single object. The
// session is an ordinary value, so an upload can hop between processes as
// long as the session value travels with it.
//
// Key features:
//   - Uploads survive restarts; any process holding the session can resume
//   - Chunks are staged as plain objects and assembled server side when the
//     backend part copy limits allow, client side otherwise
//   - Streaming writes hold at most one pooled part buffer in memory
//   - Abandoned staging objects are reclaimed by CleanPartialUploads
//   - Pluggable backends, with AWS SDK and MinIO drivers under driver/
//
// Example usage:
//
//	backend, err := s3.New(ctx, "registry-storage")
//	if err != nil {
//	    return err
//	}
//	store, err := cloudstage.New(backend, "registry/v2")
//	if err != nil {
//	    return err
//	}
//
//	uploadID, session := store.InitiateChunkedUpload()
//	_, session, err = store.StreamUploadChunk(ctx, uploadID,
//	    cloudtypes.ReadUntilEnd, body, session)
//	if err != nil {
//	    return err
//	}
//	err = store.CompleteChunkedUpload(ctx, uploadID, "blobs/data", session)
package cloudstage
