package fs

import (
	"context"
	"io"
	"net/http"
)

// Storage hosts downloaded episodes and generated feeds.
type Storage interface {
	// Served as is by the file server
	http.FileSystem

	// Path returns the local path of a file
	Path(ns string, fileName string) string

	// Create will create a new file from reader, replacing any previous one
	Create(ctx context.Context, ns string, fileName string, reader io.Reader) (int64, error)

	// Size returns the size of an existing file
	Size(ctx context.Context, ns string, fileName string) (int64, error)

	// Link returns a public URL of a file
	Link(ns string, fileName string) string
}
