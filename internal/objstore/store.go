package objstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/s3api"
)

// sniffLen is how many leading bytes of a streamed write are inspected for
// content-type detection before the stream is stitched back together.
const sniffLen = 3072

// ObjectInfo is the remote metadata the engine cares about.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// SimpleETag returns the fingerprint with surrounding quotes stripped and
// reports whether it is a comparable simple hash. Multipart uploads produce
// "<hash>-<parts>" fingerprints that cannot be compared across stores.
func (i ObjectInfo) SimpleETag() (string, bool) {
	etag := strings.Trim(i.ETag, `"`)
	return etag, etag != "" && !strings.Contains(etag, "-")
}

// Store binds a configured endpoint to an S3 client. Stores are read-only
// after construction and safe to share across concurrent key transfers.
type Store struct {
	endpoint *Endpoint
	api      s3api.S3API
	uploader *manager.Uploader
	log      *logrus.Entry
}

// New creates a store for the given endpoint.
func New(endpoint *Endpoint, api s3api.S3API, log *logrus.Logger) *Store {
	return &Store{
		endpoint: endpoint,
		api:      api,
		uploader: manager.NewUploader(api),
		log:      log.WithField("endpoint", endpoint.Name),
	}
}

// Endpoint returns the endpoint this store is bound to.
func (s *Store) Endpoint() *Endpoint { return s.endpoint }

// unpackReader closes both the gzip layer and the underlying body.
type unpackReader struct {
	*gzip.Reader
	body io.Closer
}

func (r *unpackReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.body.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open returns a streaming reader for the object at key. With opts
// requesting unpack, the stream transparently decompresses one gzip layer.
func (s *Store) Open(ctx context.Context, key string, opts Options) (io.ReadCloser, error) {
	s.log.WithFields(logrus.Fields{"key": key, "unpack": opts.Unpack()}).Debug("Opening object")
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.endpoint.Bucket),
		Key:    aws.String(s.endpoint.FullKey(key)),
	})
	if err != nil {
		return nil, errors.NewKeyError("open", s.endpoint.Name, key, err)
	}

	if !opts.Unpack() {
		return out.Body, nil
	}

	zr, err := gzip.NewReader(out.Body)
	if err != nil {
		out.Body.Close()
		return nil, errors.NewKeyError("open", s.endpoint.Name, key, err).
			WithMessage("not a gzip stream")
	}
	return &unpackReader{Reader: zr, body: out.Body}, nil
}

// Upload streams body into the object at key. The content type is sniffed
// from the leading bytes of the stream; large bodies switch to multipart
// automatically via the upload manager.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errors.NewKeyError("upload", s.endpoint.Name, key, err).
			WithMessage("reading source stream")
	}
	head = head[:n]

	contentType := mimetype.Detect(head).String()
	s.log.WithFields(logrus.Fields{"key": key, "content_type": contentType}).Debug("Uploading object")

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.endpoint.Bucket),
		Key:         aws.String(s.endpoint.FullKey(key)),
		Body:        io.MultiReader(bytes.NewReader(head), body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.NewKeyError("upload", s.endpoint.Name, key, err)
	}
	return nil
}

// ServerCopy copies the object at srcKey to dst without the bytes leaving
// the store. Both stores must address the same physical store; the
// operation is issued through the source's client.
func (s *Store) ServerCopy(ctx context.Context, srcKey string, dst *Store, dstKey string) error {
	source := s.endpoint.Bucket + "/" + s.endpoint.FullKey(srcKey)
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dst.endpoint.Bucket),
		Key:        aws.String(dst.endpoint.FullKey(dstKey)),
		CopySource: aws.String(url.PathEscape(source)),
	})
	if err != nil {
		return errors.NewKeyError("serverCopy", dst.endpoint.Name, dstKey, err).
			WithMessage("copy from " + source)
	}
	return nil
}

// Stat fetches the object's metadata without retrieving the object.
func (s *Store) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.endpoint.Bucket),
		Key:    aws.String(s.endpoint.FullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewKeyError("stat", s.endpoint.Name, key, errors.ErrObjectNotFound)
		}
		return nil, errors.NewKeyError("stat", s.endpoint.Name, key, err)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Find lists objects below the endpoint's prefix modified at or after
// newerThan (the zero time lists everything). Keys in the result are
// relative to the prefix. Zero-byte directory placeholders are skipped;
// Ceph reports those as regular files.
func (s *Store) Find(ctx context.Context, newerThan time.Time) ([]ObjectInfo, error) {
	var (
		found             []ObjectInfo
		continuationToken *string
	)

	prefix := s.endpoint.Prefix
	if prefix != "" {
		prefix += "/"
	}

	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.endpoint.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, errors.NewError("find", err).WithEndpoint(s.endpoint.Name)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			size := aws.ToInt64(obj.Size)
			if strings.HasSuffix(key, "/") && size == 0 {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			if !newerThan.IsZero() && modified.Before(newerThan) {
				continue
			}
			found = append(found, ObjectInfo{
				Key:          s.endpoint.RelKey(key),
				Size:         size,
				ETag:         aws.ToString(obj.ETag),
				LastModified: modified,
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	return found, nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}
