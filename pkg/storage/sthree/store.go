// Package sthree implements the storage.Store interface backed by
// AWS S3 buckets.
//
// S3 offers no generation preconditions, so this backend stores blobs
// only: it does not implement storage.Versioned and manifests hosted
// here are rejected with status.ErrNotSupported.
package sthree

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/oneconcern/deckmon/pkg/dlogger"
	"github.com/oneconcern/deckmon/pkg/storage"
	"github.com/oneconcern/deckmon/pkg/storage/status"
)

const pageSize = 1000

// Option to tune the s3 store
type Option func(*s3FS)

// Bucket sets the bucket hosting the objects
func Bucket(bucket string) Option {
	return func(fs *s3FS) {
		fs.bucket = bucket
	}
}

// AWSConfig overrides the AWS session configuration
func AWSConfig(cfg *aws.Config) Option {
	return func(fs *s3FS) {
		fs.awsConfig = cfg
	}
}

// Logger sets a logger on this store
func Logger(l *zap.Logger) Option {
	return func(fs *s3FS) {
		if l != nil {
			fs.l = l
		}
	}
}

// New builds a store managing objects on an S3 bucket
func New(opts ...Option) storage.Store {
	fs := &s3FS{
		l: dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(fs)
	}

	fs.s3 = s3.New(session.Must(session.NewSession(fs.awsConfig)))
	fs.uploader = s3manager.NewUploaderWithClient(fs.s3)
	fs.downloader = s3manager.NewDownloaderWithClient(fs.s3)
	return fs
}

type s3FS struct {
	bucket     string
	awsConfig  *aws.Config
	s3         *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	l          *zap.Logger
}

func (s *s3FS) String() string {
	return "s3://" + s.bucket
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if rerr, ok := err.(awserr.RequestFailure); ok && rerr.StatusCode() == 404 {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return obj.Body, nil
}

func (s *s3FS) Put(ctx context.Context, key string, rdr io.Reader, overwrite bool) error {
	if !overwrite {
		// S3 writes cannot be made conditional: emulate with a racy
		// pre-check, which is good enough for content-addressed keys.
		exists, err := s.Has(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return status.ErrExists
		}
	}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   rdr,
	})
	return toSentinelErrors(err)
}

func (s *s3FS) Delete(ctx context.Context, key string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return toSentinelErrors(err)
}

func (s *s3FS) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	eachPage := func(page *s3.ListObjectsOutput, more bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if key != "" {
				keys = append(keys, key)
			}
		}
		return more
	}
	params := &s3.ListObjectsInput{Bucket: aws.String(s.bucket)}

	if err := s.s3.ListObjectsPagesWithContext(ctx, params, eachPage); err != nil {
		return nil, toSentinelErrors(err)
	}
	return keys, nil
}

func (s *s3FS) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	if count <= 0 || count > pageSize {
		count = pageSize
	}

	out, err := s.s3.ListObjectsWithContext(ctx, &s3.ListObjectsInput{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
		MaxKeys:   aws.Int64(int64(count)),
		Marker:    aws.String(token),
	})
	if err != nil {
		return nil, "", toSentinelErrors(err)
	}

	keys := make([]string, 0, len(out.Contents)+len(out.CommonPrefixes))
	for _, obj := range out.Contents {
		if key := aws.StringValue(obj.Key); key != "" {
			keys = append(keys, key)
		}
	}
	for _, pre := range out.CommonPrefixes {
		if p := aws.StringValue(pre.Prefix); p != "" {
			keys = append(keys, p)
		}
	}

	next := ""
	if aws.BoolValue(out.IsTruncated) && len(keys) > 0 {
		next = keys[len(keys)-1]
	}
	return keys, next, nil
}
