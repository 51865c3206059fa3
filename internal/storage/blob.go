package storage

import "io"

// BlobStore holds generated media, currently synthesized listening
// recordings. Keys are slash-separated relative paths.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}
