package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// deleteBatchSize is the DeleteObjects per-request key limit.
const deleteBatchSize = 1000

// S3Option is a functional option type for S3Store.
type S3Option func(s *S3Store)

// OptS3RequestsPerSecond throttles requests issued by the store. Zero or a
// negative value disables throttling.
func OptS3RequestsPerSecond(rps float64) S3Option {
	return func(s *S3Store) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// OptS3Client replaces the S3 client, mostly useful for tests. The
// default uploader is built on top of it.
func OptS3Client(client s3iface.S3API) S3Option {
	return func(s *S3Store) {
		s.client = client
	}
}

// OptS3Uploader replaces the uploader used when a written object is
// closed.
func OptS3Uploader(uploader s3manageriface.UploaderAPI) S3Option {
	return func(s *S3Store) {
		s.uploader = uploader
	}
}

// S3Store is a Store over a bucket and key prefix.
type S3Store struct {
	bucket string
	prefix string

	sess     *session.Session
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	limiter  *rate.Limiter
}

// NewS3Store returns a store rooted at s3://bucket/prefix. Credentials are
// passed to the client directly; when they are empty the SDK's default
// provider chain applies.
func NewS3Store(bucket, prefix string, opts Options, extra ...S3Option) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 location has no bucket")
	}
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if !opts.Credentials.Empty() {
		cfg.Credentials = credentials.NewStaticCredentials(
			opts.Credentials.AccessKeyID,
			opts.Credentials.SecretAccessKey,
			"",
		)
	}

	s := &S3Store{
		bucket:  bucket,
		prefix:  cleanKey(prefix),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	var err error
	s.sess, err = session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	s.client = s3.New(s.sess)

	OptS3RequestsPerSecond(opts.RequestsPerSecond)(s)
	for _, opt := range extra {
		opt(s)
	}
	if s.uploader == nil {
		s.uploader = s3manager.NewUploaderWithClient(s.client)
	}
	return s, nil
}

func (s *S3Store) URL() string {
	if s.prefix == "" {
		return fmt.Sprintf("s3://%s/", s.bucket)
	}
	return fmt.Sprintf("s3://%s/%s/", s.bucket, s.prefix)
}

func (s *S3Store) key(k string) string {
	return Join(s.prefix, k)
}

func (s *S3Store) wait(ctx context.Context) error {
	return errors.Wrap(s.limiter.Wait(ctx), "waiting for request budget")
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	if full != "" {
		full += "/"
	}
	// an exact object at prefix counts as part of it
	exact, err := s.Exists(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	if exact {
		keys = append(keys, cleanKey(prefix))
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	strip := s.prefix
	if strip != "" {
		strip += "/"
	}
	err = s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(full)},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				keys = append(keys, strings.TrimPrefix(aws.StringValue(obj.Key), strip))
			}
			return !lastPage
		})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", s.bucket, full)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrap(ErrNotExist, key)
		}
		return nil, errors.Wrapf(err, "fetching %s", key)
	}
	return result.Body, nil
}

func (s *S3Store) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	return &objWriter{ctx: ctx, store: s, key: key}, nil
}

func (s *S3Store) Rename(ctx context.Context, from, to string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(copySource(s.bucket, s.key(from))),
		Key:        aws.String(s.key(to)),
	})
	if err != nil {
		return errors.Wrapf(err, "copying %s to %s", from, to)
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(from)),
	})
	return errors.Wrapf(err, "deleting %s", from)
}

func (s *S3Store) RemoveAll(ctx context.Context, prefix string) error {
	if cleanKey(prefix) == "" {
		return errors.New("refusing to remove store root")
	}
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(s.key(k))})
		}
		if err := s.wait(ctx); err != nil {
			return err
		}
		_, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrapf(err, "deleting objects under %s", prefix)
		}
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if cleanKey(key) == "" && s.prefix == "" {
		return false, nil
	}
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking %s", key)
	}
	return true, nil
}

// objWriter buffers an object and uploads it on Close.
type objWriter struct {
	ctx   context.Context
	store *S3Store
	key   string
	buf   bytes.Buffer
}

func (w *objWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *objWriter) Close() error {
	if err := w.store.wait(w.ctx); err != nil {
		return err
	}
	_, err := w.store.uploader.UploadWithContext(w.ctx, &s3manager.UploadInput{
		Bucket: aws.String(w.store.bucket),
		Key:    aws.String(w.store.key(w.key)),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return errors.Wrapf(err, "uploading %s", w.key)
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// copySource URL-encodes each segment of bucket/key for CopyObject.
func copySource(bucket, key string) string {
	segs := strings.Split(bucket+"/"+key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
