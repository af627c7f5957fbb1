package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestProofKey(t *testing.T) {
	pattern := regexp.MustCompile(`^proofs/u-1/t-9/[0-9a-f-]{36}\.jpg$`)
	assert.Regexp(t, pattern, ProofKey("u-1", "t-9", "image/jpeg", "IMG_0001.JPEG"))

	key := ProofKey("u-1", "t-9", "image/heic", "photo.HEIC")
	assert.Regexp(t, `\.heic$`, key)

	assert.NotEqual(t, ProofKey("u", "t", "image/png", ""), ProofKey("u", "t", "image/png", ""))
}

func TestBlobStore_UploadAndDelete(t *testing.T) {
	api := newFakeObjectAPI()
	store := NewBlobStore(api, "proofs-bucket", "https://cdn.example.org/proofs-bucket/")
	ctx := context.Background()

	url, err := store.Upload(ctx, "proofs/u/t/x.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/proofs-bucket/proofs/u/t/x.png", url)
	assert.Equal(t, []byte("png-bytes"), api.objects["proofs/u/t/x.png"])
	assert.Equal(t, "image/png", api.types["proofs/u/t/x.png"])

	require.NoError(t, store.Delete(ctx, "proofs/u/t/x.png"))
	assert.Empty(t, api.objects)
}

func TestBlobStore_UploadError(t *testing.T) {
	api := newFakeObjectAPI()
	api.putErr = errors.New("access denied")
	store := NewBlobStore(api, "b", "https://cdn.example.org")

	_, err := store.Upload(context.Background(), "k", "image/png", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
