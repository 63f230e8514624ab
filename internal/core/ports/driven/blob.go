package driven

import "context"

// BlobStore keeps the original bytes of uploaded documents.
type BlobStore interface {
	// Put stores data and returns a reference for Get.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes for ref, or domain.ErrNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)

	// Delete removes ref. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}
