package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "lake"

// fakeS3 keeps objects of a single bucket in memory. Keys are full object
// keys, root prefix included.
type fakeS3 struct {
	s3iface.S3API

	mu            sync.Mutex
	objects       map[string][]byte
	pageSize      int
	deleteBatches []int
	copySources   []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 1000}
}

func (f *fakeS3) checkBucket(bucket *string) error {
	if aws.StringValue(bucket) != testBucket {
		return awserr.New(s3.ErrCodeNoSuchBucket, "no such bucket", nil)
	}
	return nil
}

func (f *fakeS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New("NotFound", "Not Found", nil)
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	if err := f.checkBucket(in.Bucket); err != nil {
		return err
	}
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	for start := 0; ; start += f.pageSize {
		end := start + f.pageSize
		if end > len(keys) {
			end = len(keys)
		}
		page := &s3.ListObjectsV2Output{}
		for _, k := range keys[start:end] {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
		}
		last := end == len(keys)
		if !fn(page, last) || last {
			return nil
		}
	}
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) CopyObjectWithContext(ctx aws.Context, in *s3.CopyObjectInput, _ ...request.Option) (*s3.CopyObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	src, err := url.PathUnescape(aws.StringValue(in.CopySource))
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copySources = append(f.copySources, aws.StringValue(in.CopySource))
	body, ok := f.objects[strings.TrimPrefix(src, testBucket+"/")]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	f.objects[aws.StringValue(in.Key)] = body
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectsWithContext(ctx aws.Context, in *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if n := len(in.Delete.Objects); n > deleteBatchSize {
		return nil, awserr.New("MalformedXML", fmt.Sprintf("%d keys in one request", n), nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteBatches = append(f.deleteBatches, len(in.Delete.Objects))
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.StringValue(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fakeUploader stores uploads in a fakeS3.
type fakeUploader struct {
	s3 *fakeS3
}

func (u fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return u.UploadWithContext(context.Background(), in, opts...)
}

func (u fakeUploader) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if err := u.s3.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	u.s3.mu.Lock()
	defer u.s3.mu.Unlock()
	u.s3.objects[aws.StringValue(in.Key)] = body
	return &s3manager.UploadOutput{}, nil
}

func newTestS3Store(t *testing.T, prefix string) (*S3Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	s, err := NewS3Store(testBucket, prefix, Options{Region: "us-west-2"},
		OptS3Client(fake), OptS3Uploader(fakeUploader{s3: fake}))
	require.NoError(t, err)
	return s, fake
}

func TestS3StoreList(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestS3Store(t, "/warehouse//sparkify/")
	fake.pageSize = 1
	for _, k := range []string{
		"warehouse/sparkify/t/year=2000/part-00000.parquet",
		"warehouse/sparkify/t/year=2001/part-00000.parquet",
		"warehouse/sparkify/t/_SUCCESS",
		"warehouse/sparkify/tx/other",
		"warehouse/sparkify/marker",
		"warehouse/elsewhere/t/x",
	} {
		fake.objects[k] = []byte("x")
	}

	assert.Equal(t, "s3://lake/warehouse/sparkify/", s.URL())

	t.Run("Prefix", func(t *testing.T) {
		keys, err := s.List(ctx, "t")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"t/_SUCCESS",
			"t/year=2000/part-00000.parquet",
			"t/year=2001/part-00000.parquet",
		}, keys)
	})

	t.Run("ExactKey", func(t *testing.T) {
		keys, err := s.List(ctx, "marker")
		require.NoError(t, err)
		assert.Equal(t, []string{"marker"}, keys)
	})

	t.Run("Root", func(t *testing.T) {
		keys, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"marker",
			"t/_SUCCESS",
			"t/year=2000/part-00000.parquet",
			"t/year=2001/part-00000.parquet",
			"tx/other",
		}, keys)
	})

	t.Run("Missing", func(t *testing.T) {
		keys, err := s.List(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestS3StoreObjects(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestS3Store(t, "out")

	put(t, s, "users-data.parquet/part-00000.snappy.parquet", "rows")
	assert.Equal(t, []string{"out/users-data.parquet/part-00000.snappy.parquet"}, fake.keys())

	t.Run("Open", func(t *testing.T) {
		r, err := s.Open(ctx, "users-data.parquet/part-00000.snappy.parquet")
		require.NoError(t, err)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, "rows", string(b))
	})

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := s.Open(ctx, "users-data.parquet/_SUCCESS")
		assert.True(t, errors.Is(err, ErrNotExist), "got %v", err)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := s.Exists(ctx, "users-data.parquet/part-00000.snappy.parquet")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists(ctx, "users-data.parquet/_SUCCESS")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestS3StoreRename(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestS3Store(t, "out")

	from := "_temporary/r1/song-data.parquet/year=2000/artist_id=A B/part-00000.snappy.parquet"
	to := "song-data.parquet/year=2000/artist_id=A B/part-00000.snappy.parquet"
	put(t, s, from, "rows")

	require.NoError(t, s.Rename(ctx, from, to))
	assert.Equal(t, []string{"out/" + to}, fake.keys())
	assert.Equal(t, []string{
		"lake/out/_temporary/r1/song-data.parquet/year=2000/artist_id=A%20B/part-00000.snappy.parquet",
	}, fake.copySources)

	err := s.Rename(ctx, "missing", "elsewhere")
	assert.Error(t, err)
}

func TestS3StoreRemoveAll(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestS3Store(t, "out")
	for i := 0; i < 2500; i++ {
		fake.objects[fmt.Sprintf("out/big/part-%05d.parquet", i)] = nil
	}
	fake.objects["out/bigger/keep"] = nil
	fake.objects["out/keep"] = nil

	require.NoError(t, s.RemoveAll(ctx, "big"))
	assert.Equal(t, []int{1000, 1000, 500}, fake.deleteBatches)
	assert.Equal(t, []string{"out/bigger/keep", "out/keep"}, fake.keys())

	assert.Error(t, s.RemoveAll(ctx, "/"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)))
	assert.True(t, isNotFound(awserr.New("NotFound", "missing", nil)))
	assert.False(t, isNotFound(awserr.New("AccessDenied", "denied", nil)))
	assert.False(t, isNotFound(errors.New("NotFound")))
}
