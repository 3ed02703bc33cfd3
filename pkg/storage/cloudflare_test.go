package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sefazor/storycredits/pkg/timeout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	delay   time.Duration
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestCloudflareStorage_PutGet(t *testing.T) {
	fake := newFakeS3()
	store := newCloudflareStorage(fake, "dead-letters", time.Second)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "dead-letters/2026/01/02/evt_1.json", []byte(`{"id":"evt_1"}`), "application/json"))
	assert.Equal(t, "application/json", fake.types["dead-letters/dead-letters/2026/01/02/evt_1.json"])

	body, err := store.Get(ctx, "dead-letters/2026/01/02/evt_1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(body))

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestCloudflareStorage_PutTimeout(t *testing.T) {
	fake := newFakeS3()
	fake.delay = time.Second
	store := newCloudflareStorage(fake, "bucket", 10*time.Millisecond)

	err := store.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, timeout.ErrTimeout)
}
