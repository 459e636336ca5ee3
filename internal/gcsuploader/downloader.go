package gcsuploader

import (
	"context"
	"fmt"
	"io"
)

// maxFetchBytes caps how much of an object Fetch will read into memory.
const maxFetchBytes = 32 << 20

// Fetch downloads the bytes of the object at gcsURI.
func (u *Uploader) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := u.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: reading bytes: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("fetch: object %s exceeds %d bytes", gcsURI, maxFetchBytes)
	}
	return data, nil
}
