package dispatcher

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/objstore"
	"github.com/s3gate/s3gate/internal/planner"
	"github.com/s3gate/s3gate/internal/testutil"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func gzipBytes(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func plannedFile(fake *testutil.Fake, ep *objstore.Endpoint, key string) *planner.PlannedFile {
	return &planner.PlannedFile{
		Store: objstore.New(ep, fake.Client(), testLogger()),
		Key:   key,
	}
}

func TestCopySameStore(t *testing.T) {
	fake := testutil.NewFake()
	creds := objstore.Credentials{AccessKeyID: "k", SecretAccessKey: "s"}
	data := []byte("payload")
	fake.Put("bucket", "in/a.csv", data)

	planned := []*planner.PlannedFile{
		plannedFile(fake, &objstore.Endpoint{Name: "source", Credentials: creds, Bucket: "bucket", Prefix: "in"}, "a.csv"),
		plannedFile(fake, &objstore.Endpoint{Name: "destination.a", Credentials: creds, Bucket: "bucket", Prefix: "out"}, "a.csv"),
	}

	err := New(testLogger()).Copy(context.Background(), planned)
	require.NoError(t, err)

	obj := fake.Object("bucket", "out/a.csv")
	require.NotNil(t, obj)
	assert.Equal(t, data, obj.Data)

	// Structurally equal endpoints never move bytes through the engine.
	assert.Equal(t, 1, fake.CopyCalls)
	assert.Equal(t, 0, fake.GetCalls)
	assert.Equal(t, 0, fake.PutCalls)
}

func TestCopyMatchingOptionsStreamsRawBytes(t *testing.T) {
	fake := testutil.NewFake()
	packed := gzipBytes(t, []byte("plain text"))
	fake.Put("src", "in/a.txt.gz", packed)

	// Both sides request unpack, so the representations already agree and
	// the bytes must travel untouched.
	opts := objstore.Options{"unpack": "true"}
	planned := []*planner.PlannedFile{
		plannedFile(fake, &objstore.Endpoint{
			Name:        "source",
			Credentials: objstore.Credentials{AccessKeyID: "src-k", SecretAccessKey: "s"},
			Bucket:      "src", Prefix: "in", Options: opts,
		}, "a.txt.gz"),
		plannedFile(fake, &objstore.Endpoint{
			Name:        "destination.a",
			Credentials: objstore.Credentials{AccessKeyID: "dst-k", SecretAccessKey: "s"},
			Bucket:      "dst", Prefix: "out", Options: opts,
		}, "a.txt.gz"),
	}

	err := New(testLogger()).Copy(context.Background(), planned)
	require.NoError(t, err)

	obj := fake.Object("dst", "out/a.txt.gz")
	require.NotNil(t, obj)
	assert.Equal(t, packed, obj.Data)
	assert.Equal(t, 0, fake.CopyCalls)
	assert.Equal(t, 1, fake.GetCalls)
	assert.Equal(t, 1, fake.PutCalls)
}

func TestCopyDifferingOptionsStreamsFromAbsoluteSource(t *testing.T) {
	fake := testutil.NewFake()
	plain := []byte("plain text content")
	fake.Put("src", "in/a.txt.gz", gzipBytes(t, plain))

	planned := []*planner.PlannedFile{
		plannedFile(fake, &objstore.Endpoint{
			Name:        "source",
			Credentials: objstore.Credentials{AccessKeyID: "src-k", SecretAccessKey: "s"},
			Bucket:      "src", Prefix: "in",
		}, "a.txt.gz"),
		plannedFile(fake, &objstore.Endpoint{
			Name:        "destination.mirror",
			Credentials: objstore.Credentials{AccessKeyID: "mid-k", SecretAccessKey: "s"},
			Bucket:      "mid", Prefix: "keep",
		}, "a.txt.gz"),
		plannedFile(fake, &objstore.Endpoint{
			Name:        "destination.unpacked",
			Credentials: objstore.Credentials{AccessKeyID: "dst-k", SecretAccessKey: "s"},
			Bucket:      "dst", Prefix: "out",
			Options: objstore.Options{"unpack": "true"},
		}, "a.txt"),
	}

	err := New(testLogger()).Copy(context.Background(), planned)
	require.NoError(t, err)

	// The mirror holds the packed original.
	mid := fake.Object("mid", "keep/a.txt.gz")
	require.NotNil(t, mid)
	assert.Equal(t, gzipBytes(t, plain), mid.Data)

	// The unpacking destination re-reads the original source, not the
	// intermediate, and lands decompressed.
	out := fake.Object("dst", "out/a.txt")
	require.NotNil(t, out)
	assert.Equal(t, plain, out.Data)
}

func TestCopyWrapsFailures(t *testing.T) {
	fake := testutil.NewFake()
	// Nothing stored, so the read side fails.
	planned := []*planner.PlannedFile{
		plannedFile(fake, &objstore.Endpoint{
			Name:        "source",
			Credentials: objstore.Credentials{AccessKeyID: "src-k", SecretAccessKey: "s"},
			Bucket:      "src",
		}, "absent.csv"),
		plannedFile(fake, &objstore.Endpoint{
			Name:        "destination.a",
			Credentials: objstore.Credentials{AccessKeyID: "dst-k", SecretAccessKey: "s"},
			Bucket:      "dst",
		}, "absent.csv"),
	}

	err := New(testLogger()).Copy(context.Background(), planned)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCopyFailed)
	assert.Contains(t, err.Error(), "destination.a")
}
