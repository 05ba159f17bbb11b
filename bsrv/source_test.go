package bsrv_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/advdv/bscript/bsrv"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource(t *testing.T) {
	src := bsrv.NewFSSource(fstest.MapFS{
		"routes.json":   {Data: []byte(`{"routes":[]}`)},
		"lib/hello.lua": {Data: []byte(`http.say("hello")`)},
	})

	data, err := src.ReadFile(t.Context(), "lib/hello.lua")
	require.NoError(t, err)
	assert.Equal(t, `http.say("hello")`, string(data))

	_, err = src.ReadFile(t.Context(), "missing.lua")
	require.ErrorIs(t, err, bsrv.ErrNotExist)

	_, err = src.ReadFile(t.Context(), "../etc/passwd")
	require.ErrorContains(t, err, "invalid script name")
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) GetObject(
	_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.calls = append(f.calls, key)

	body, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("no such key")}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"bucket/prod/hello.lua": `http.say("from s3")`,
	}}
	src := bsrv.NewS3Source(client, "bucket", "prod")

	data, err := src.ReadFile(t.Context(), "hello.lua")
	require.NoError(t, err)
	assert.Equal(t, `http.say("from s3")`, string(data))

	_, err = src.ReadFile(t.Context(), "missing.lua")
	require.ErrorIs(t, err, bsrv.ErrNotExist)
	assert.Equal(t, []string{"bucket/prod/hello.lua", "bucket/prod/missing.lua"}, client.calls)
}

func TestS3SourceOtherError(t *testing.T) {
	src := bsrv.NewS3Source(errS3{}, "bucket", "")

	_, err := src.ReadFile(t.Context(), "hello.lua")
	require.ErrorContains(t, err, "get s3://bucket/hello.lua: access denied")
	assert.False(t, errors.Is(err, bsrv.ErrNotExist))
}

type errS3 struct{}

func (errS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("access denied")
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scripts/hello.lua" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`http.say("from http")`))
	}))
	t.Cleanup(srv.Close)

	src := bsrv.NewHTTPSource(srv.URL+"/scripts/", nil)

	data, err := src.ReadFile(t.Context(), "hello.lua")
	require.NoError(t, err)
	assert.Equal(t, `http.say("from http")`, string(data))

	_, err = src.ReadFile(t.Context(), "missing.lua")
	require.ErrorIs(t, err, bsrv.ErrNotExist)
}
