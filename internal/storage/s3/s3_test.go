package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBucketAndKeys(t *testing.T) {
	_, err := New(Config{AccessKey: "a", SecretKey: "b"})
	require.Error(t, err)

	_, err = New(Config{Bucket: "media"})
	require.Error(t, err)

	_, err = New(Config{Bucket: "media", AccessKey: "a", SecretKey: "b", URLMode: URLModePublic})
	require.Error(t, err)
}

func TestGenerateURL_Public(t *testing.T) {
	s, err := New(Config{
		Bucket:        "media",
		AccessKey:     "a",
		SecretKey:     "b",
		URLMode:       URLModePublic,
		PublicBaseURL: "https://cdn.example.com/media/",
	})
	require.NoError(t, err)

	url, err := s.GenerateURL(context.Background(), "recipes/coverImage-1-abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/recipes/coverImage-1-abc.jpg", url)
	assert.Equal(t, "s3", s.Type())
}

func TestGenerateURL_Presigned(t *testing.T) {
	s, err := New(Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "media",
		AccessKey: "a",
		SecretKey: "b",
		PathStyle: true,
	})
	require.NoError(t, err)

	url, err := s.GenerateURL(context.Background(), "profiles/p.jpg")
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/media/profiles/p.jpg")
	assert.Contains(t, url, "X-Amz-Signature=")
}
