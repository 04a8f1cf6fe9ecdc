// Package gcs implements the storage.Store interface backed by
// Google Cloud Storage buckets.
//
// Conditional manifest writes rely on GCS object generations, so this
// backend also implements storage.Versioned.
package gcs

import (
	"context"
	"io"

	gcsStorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/storage"
)

type gcs struct {
	client         *gcsStorage.Client
	readOnlyClient *gcsStorage.Client
	bucket         string
	l              *zap.Logger
}

var (
	_ storage.Store     = &gcs{}
	_ storage.Versioned = &gcs{}
)

// Option to tune the gcs store
type Option func(*gcs)

// Logger sets a logger on this store
func Logger(l *zap.Logger) Option {
	return func(g *gcs) {
		if l != nil {
			g.l = l
		}
	}
}

// New builds a store managing objects on a GCS bucket. An empty
// credentialFile defaults to application default credentials.
func New(ctx context.Context, bucket string, credentialFile string, opts ...Option) (storage.Store, error) {
	googleStore := &gcs{
		bucket: bucket,
		l:      dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(googleStore)
	}

	var err error
	readOnly := []option.ClientOption{option.WithScopes(gcsStorage.ScopeReadOnly)}
	fullControl := []option.ClientOption{option.WithScopes(gcsStorage.ScopeFullControl)}
	if credentialFile != "" {
		readOnly = append(readOnly, option.WithCredentialsFile(credentialFile))
		fullControl = append(fullControl, option.WithCredentialsFile(credentialFile))
	}

	googleStore.readOnlyClient, err = gcsStorage.NewClient(ctx, readOnly...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	googleStore.client, err = gcsStorage.NewClient(ctx, fullControl...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return googleStore, nil
}

func (g *gcs) String() string {
	return "gcs://" + g.bucket
}

func (g *gcs) Has(ctx context.Context, objectName string) (bool, error) {
	_, err := g.readOnlyClient.Bucket(g.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		if err == gcsStorage.ErrObjectNotExist {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

// gcsReader exposes WriteTo so copies can use the buffered pipe
type gcsReader struct {
	objectReader io.ReadCloser
}

func (r gcsReader) WriteTo(writer io.Writer) (n int64, err error) {
	return storage.PipeIO(writer, r.objectReader)
}

func (r gcsReader) Close() error {
	return r.objectReader.Close()
}

func (r gcsReader) Read(p []byte) (n int, err error) {
	return r.objectReader.Read(p)
}

func (g *gcs) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	objectReader, err := g.readOnlyClient.Bucket(g.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return gcsReader{objectReader: objectReader}, nil
}

func (g *gcs) Put(ctx context.Context, objectName string, reader io.Reader, overwrite bool) error {
	object := g.client.Bucket(g.bucket).Object(objectName)
	if !overwrite {
		object = object.If(gcsStorage.Conditions{DoesNotExist: true})
	}
	writer := object.NewWriter(ctx)
	_, err := storage.PipeIO(writer, reader)
	if err != nil {
		_ = writer.Close()
		return toSentinelErrors(err)
	}
	return toSentinelErrors(writer.Close())
}

func (g *gcs) Delete(ctx context.Context, objectName string) error {
	err := g.client.Bucket(g.bucket).Object(objectName).Delete(ctx)
	if err == gcsStorage.ErrObjectNotExist {
		return nil
	}
	return toSentinelErrors(err)
}

func (g *gcs) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	token := ""
	for {
		page, next, err := g.KeysPrefix(ctx, token, "", "", 1024)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if next == "" {
			break
		}
		token = next
	}
	return keys, nil
}

func (g *gcs) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	itr := g.readOnlyClient.Bucket(g.bucket).Objects(ctx, &gcsStorage.Query{
		Prefix:    prefix,
		Delimiter: delimiter,
	})

	var objects []*gcsStorage.ObjectAttrs
	nextPageToken, err := iterator.NewPager(itr, count, token).NextPage(&objects)
	if err != nil {
		return nil, "", toSentinelErrors(err)
	}

	keys := make([]string, 0, len(objects))
	for _, attrs := range objects {
		if attrs.Name != "" {
			keys = append(keys, attrs.Name)
			continue
		}
		keys = append(keys, attrs.Prefix)
	}
	return keys, nextPageToken, nil
}

// GetVersioned returns the object payload along with its current generation
func (g *gcs) GetVersioned(ctx context.Context, objectName string) (io.ReadCloser, int64, error) {
	object := g.readOnlyClient.Bucket(g.bucket).Object(objectName)
	attrs, err := object.Attrs(ctx)
	if err != nil {
		return nil, 0, toSentinelErrors(err)
	}
	rdr, err := object.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		return nil, 0, toSentinelErrors(err)
	}
	return gcsReader{objectReader: rdr}, attrs.Generation, nil
}

// PutVersioned writes an object conditioned on its current generation,
// mapping GCS precondition failures to status.ErrVersionConflict.
func (g *gcs) PutVersioned(ctx context.Context, objectName string, reader io.Reader, expectedGeneration int64) (int64, error) {
	object := g.client.Bucket(g.bucket).Object(objectName)
	if expectedGeneration == 0 {
		object = object.If(gcsStorage.Conditions{DoesNotExist: true})
	} else {
		object = object.If(gcsStorage.Conditions{GenerationMatch: expectedGeneration})
	}

	writer := object.NewWriter(ctx)
	if _, err := storage.PipeIO(writer, reader); err != nil {
		_ = writer.Close()
		return 0, toSentinelErrors(err)
	}
	if err := writer.Close(); err != nil {
		return 0, toSentinelErrors(err)
	}

	g.l.Debug("conditional write settled",
		zap.String("object", objectName),
		zap.Int64("expected_generation", expectedGeneration),
		zap.Int64("generation", writer.Attrs().Generation),
	)
	return writer.Attrs().Generation, nil
}
