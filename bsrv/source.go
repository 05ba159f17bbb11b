package bsrv

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotExist is returned by a [Source] for names it has nothing for.
var ErrNotExist = errors.New("script source: file does not exist")

// Source is where the route manifest and the scripts it names are read from.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads from a directory on the local file system.
type DirSource struct {
	fsys fs.FS
}

// NewDirSource reads scripts from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{fsys: os.DirFS(dir)}
}

// NewFSSource reads scripts from fsys.
func NewFSSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

// ReadFile implements [Source].
func (s *DirSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, errors.Newf("invalid script name %q", name)
	}

	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", name), ErrNotExist)
	}

	return data, errors.Wrapf(err, "read %s", name)
}

// ObjectGetter is the part of the S3 API that [S3Source] needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads scripts from objects in a bucket, under an optional key prefix.
type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Source inits an S3 source.
func NewS3Source(client ObjectGetter, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// ReadFile implements [Source].
func (s *S3Source) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key := path.Join(s.prefix, name)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Mark(errors.Wrapf(err, "get s3://%s/%s", s.bucket, key), ErrNotExist)
		}
		return nil, errors.Wrapf(err, "get s3://%s/%s", s.bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	return data, errors.Wrapf(err, "read s3://%s/%s", s.bucket, key)
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

// HTTPSource reads scripts from below a base URL.
type HTTPSource struct {
	base      string
	transport http.RoundTripper
}

// NewHTTPSource inits an HTTP source. A nil transport means http.DefaultTransport.
func NewHTTPSource(base string, transport http.RoundTripper) *HTTPSource {
	return &HTTPSource{base: strings.TrimSuffix(base, "/"), transport: transport}
}

// ReadFile implements [Source].
func (s *HTTPSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var buf bytes.Buffer

	b := requests.URL(s.base + "/" + strings.TrimPrefix(name, "/")).ToBytesBuffer(&buf)
	if s.transport != nil {
		b = b.Transport(s.transport)
	}

	if err := b.Fetch(ctx); err != nil {
		if requests.HasStatusErr(err, http.StatusNotFound) {
			return nil, errors.Mark(errors.Wrapf(err, "fetch %s", name), ErrNotExist)
		}
		return nil, errors.Wrapf(err, "fetch %s", name)
	}

	return buf.Bytes(), nil
}

// NewSource picks the source configured in env. The S3 client is only created when it is needed.
func NewSource(env Environment, tp trace.TracerProvider, prop propagation.TextMapPropagator) (Source, error) {
	switch env.ScriptSource {
	case SourceS3:
		client, err := newS3Client(env, tp, prop)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create s3 client")
		}
		return NewS3Source(client, env.ScriptBucket, env.ScriptPrefix), nil
	case SourceHTTP:
		return NewHTTPSource(env.ScriptURL, NewHTTPTransport(tp, prop)), nil
	default:
		return NewDirSource(env.ScriptDir), nil
	}
}
