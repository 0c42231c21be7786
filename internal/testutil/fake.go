package testutil

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeObject is one stored object in a Fake.
type FakeObject struct {
	Data         []byte
	ETag         string
	LastModified time.Time
}

// Fake is an in-memory object store shared by any number of MockS3Client
// values built from it. It records call counts so tests can assert which
// copy strategy ran.
type Fake struct {
	mu      sync.Mutex
	buckets map[string]map[string]*FakeObject

	PutCalls  int
	GetCalls  int
	HeadCalls int
	CopyCalls int
	ListCalls int
}

// NewFake creates an empty fake store.
func NewFake() *Fake {
	return &Fake{buckets: make(map[string]map[string]*FakeObject)}
}

// Put stores an object with a simple md5 fingerprint.
func (f *Fake) Put(bucket, key string, data []byte) {
	f.PutWith(bucket, key, data, fmt.Sprintf(`"%x"`, md5.Sum(data)), time.Now())
}

// PutWith stores an object with an explicit fingerprint and modification
// time, for simulating multipart uploads and aged objects.
func (f *Fake) PutWith(bucket, key string, data []byte, etag string, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.buckets[bucket]
	if b == nil {
		b = make(map[string]*FakeObject)
		f.buckets[bucket] = b
	}
	b[key] = &FakeObject{Data: append([]byte(nil), data...), ETag: etag, LastModified: modified}
}

// Object returns the stored object, or nil when absent.
func (f *Fake) Object(bucket, key string) *FakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket][key]
}

// Client builds a mock client backed by the fake's object map.
func (f *Fake) Client() *MockS3Client {
	return &MockS3Client{
		PutObjectFunc:     f.putObject,
		GetObjectFunc:     f.getObject,
		HeadObjectFunc:    f.headObject,
		CopyObjectFunc:    f.copyObject,
		ListObjectsV2Func: f.listObjects,
	}
}

func (f *Fake) putObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.Put(aws.ToString(params.Bucket), aws.ToString(params.Key), data)

	f.mu.Lock()
	f.PutCalls++
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *Fake) getObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	f.GetCalls++
	obj := f.buckets[aws.ToString(params.Bucket)][aws.ToString(params.Key)]
	f.mu.Unlock()
	if obj == nil {
		return nil, fmt.Errorf("NoSuchKey: %s", aws.ToString(params.Key))
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(obj.Data))),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ETag:          aws.String(obj.ETag),
	}, nil
}

func (f *Fake) headObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	f.HeadCalls++
	obj := f.buckets[aws.ToString(params.Bucket)][aws.ToString(params.Key)]
	f.mu.Unlock()
	if obj == nil {
		return nil, fmt.Errorf("NotFound: %s", aws.ToString(params.Key))
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.LastModified),
	}, nil
}

func (f *Fake) copyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	source, err := url.PathUnescape(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	srcBucket, srcKey, _ := strings.Cut(source, "/")

	f.mu.Lock()
	f.CopyCalls++
	obj := f.buckets[srcBucket][srcKey]
	f.mu.Unlock()
	if obj == nil {
		return nil, fmt.Errorf("NoSuchKey: %s", source)
	}

	f.PutWith(aws.ToString(params.Bucket), aws.ToString(params.Key), obj.Data, obj.ETag, time.Now())
	return &s3.CopyObjectOutput{}, nil
}

func (f *Fake) listObjects(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	prefix := aws.ToString(params.Prefix)
	var keys []string
	for key := range f.buckets[aws.ToString(params.Bucket)] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		obj := f.buckets[aws.ToString(params.Bucket)][key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.Data))),
			ETag:         aws.String(obj.ETag),
			LastModified: aws.Time(obj.LastModified),
		})
	}
	return out, nil
}
