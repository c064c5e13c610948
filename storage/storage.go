package storage

import (
	"context"
	"errors"
)

/*
Storage providers hold the immutable objects backing each dataset version.
Object ids are slash-separated paths such as "sst/3/dataset.dds". Objects are
written once at import and read whole when a version is loaded.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Provider is an object store.
type Provider interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
