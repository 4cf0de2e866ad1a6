package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Sink receives a rendered document.
type Sink interface {
	Publish(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
	String() string
}

// Publish marshals doc once and hands it to every sink. Every sink is
// attempted; failures are aggregated.
func Publish(ctx context.Context, doc *Document, sinks ...Sink) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, s := range sinks {
		if err := s.Publish(ctx, data); err != nil {
			result = multierror.Append(result, fmt.Errorf("publish to %s: %w", s, err))
		}
	}
	return result.ErrorOrNil()
}

// Remove withdraws a published document from every sink.
func Remove(ctx context.Context, sinks ...Sink) error {
	var result *multierror.Error
	for _, s := range sinks {
		if err := s.Remove(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove from %s: %w", s, err))
		}
	}
	return result.ErrorOrNil()
}

// FileSink writes the document to a local path.
type FileSink struct {
	Path string
}

// Publish writes data next to Path and renames it into place.
func (f FileSink) Publish(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".inventory-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod inventory: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to move inventory into place: %w", err)
	}
	return nil
}

// Remove deletes Path. A missing file is not an error.
func (f FileSink) Remove(context.Context) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f FileSink) String() string { return f.Path }

// ObjectStore is the part of the S3 client the bucket sink uses.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// BucketSink uploads the document to an object store.
type BucketSink struct {
	Store  ObjectStore
	Bucket string
	Key    string
}

// Publish ensures the bucket and uploads data under Key.
func (b BucketSink) Publish(ctx context.Context, data []byte) error {
	if err := b.Store.EnsureBucket(ctx, b.Bucket); err != nil {
		return err
	}
	return b.Store.PutObject(ctx, b.Bucket, b.Key, "application/yaml", data)
}

// Remove deletes Key.
func (b BucketSink) Remove(ctx context.Context) error {
	return b.Store.DeleteObject(ctx, b.Bucket, b.Key)
}

func (b BucketSink) String() string { return "s3://" + b.Bucket + "/" + b.Key }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
