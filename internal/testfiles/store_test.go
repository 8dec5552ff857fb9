package testfiles_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/judge/internal/testfiles"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func compress(t *testing.T, s string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil)
}

type server struct {
	*httptest.Server
	files *xsync.MapOf[string, []byte]
	hits  atomic.Int32
}

func newServer(t *testing.T, files map[string][]byte) *server {
	s := &server{files: xsync.NewMapOf[string, []byte]()}
	for path, body := range files {
		s.files.Store(path, body)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		body, ok := s.files.Load(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newStore(t *testing.T, dir string) (*testfiles.Store, context.Context) {
	t.Helper()
	store, err := testfiles.New(dir, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return store, ctx
}

func TestStoreDownloads(t *testing.T) {
	const plain = "315941512 -119267504\n"
	const packed = "196674008\n"
	srv := newServer(t, map[string][]byte{
		"/plain.txt":  []byte(plain),
		"/packed.zst": compress(t, packed),
	})
	store, ctx := newStore(t, t.TempDir())
	go store.Start(ctx)

	require.NoError(t, store.Schedule(sum(plain), srv.URL+"/plain.txt"))
	require.NoError(t, store.Schedule(sum(packed), srv.URL+"/packed.zst"))
	require.NoError(t, store.Schedule(sum(packed), srv.URL+"/packed.zst"))

	body, err := store.Await(ctx, sum(plain))
	require.NoError(t, err)
	assert.Equal(t, plain, string(body))

	body, err = store.Await(ctx, sum(packed))
	require.NoError(t, err)
	assert.Equal(t, packed, string(body))
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestStoreErrors(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/a": []byte("a")})
	store, ctx := newStore(t, t.TempDir())
	go store.Start(ctx)

	_, err := store.Await(ctx, sum("never"))
	require.ErrorIs(t, err, testfiles.ErrNotScheduled)

	require.ErrorIs(t, store.Schedule("abc", srv.URL+"/a"), testfiles.ErrBadKey)
	require.ErrorIs(t, store.Schedule(strings.ToUpper(sum("a")), srv.URL+"/a"), testfiles.ErrBadKey)

	// mismatch in integrity hash
	wrong := sum("b")
	require.NoError(t, store.Schedule(wrong, srv.URL+"/a"))
	_, err = store.Await(ctx, wrong)
	require.ErrorIs(t, err, testfiles.ErrIntegrity)

	missing := sum("missing")
	require.NoError(t, store.Schedule(missing, srv.URL+"/missing"))
	_, err = store.Await(ctx, missing)
	require.ErrorContains(t, err, "404")

	unknown := sum("ftp")
	require.NoError(t, store.Schedule(unknown, "ftp://example.com/a"))
	_, err = store.Await(ctx, unknown)
	require.ErrorContains(t, err, "ftp")
}

func TestStoreReusesCache(t *testing.T) {
	const content = "42\n"
	srv := newServer(t, map[string][]byte{"/f": []byte(content)})
	dir := t.TempDir()

	first, ctx := newStore(t, dir)
	go first.Start(ctx)
	require.NoError(t, first.Schedule(sum(content), srv.URL+"/f"))
	_, err := first.Await(ctx, sum(content))
	require.NoError(t, err)

	second, ctx := newStore(t, dir)
	require.NoError(t, second.Schedule(sum(content), srv.URL+"/f"))
	// no Start: a cached file needs no download
	body, err := second.Await(ctx, sum(content))
	require.NoError(t, err)
	assert.Equal(t, content, string(body))
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestAwaitHonoursContext(t *testing.T) {
	store, _ := newStore(t, t.TempDir())
	require.NoError(t, store.Schedule(sum("x"), "https://example.invalid/x"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := store.Await(ctx, sum("x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeS3 struct {
	bucket, key string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(zstdBody)),
		ContentType: aws.String("application/zstd"),
	}, nil
}

var zstdBody []byte

func TestStoreS3(t *testing.T) {
	const content = "1 2 3\n"
	zstdBody = compress(t, content)
	client := &fakeS3{}

	store, ctx := newStore(t, t.TempDir())
	store.Register("s3", testfiles.NewS3Fetcher(client))
	go store.Start(ctx)

	require.NoError(t, store.Schedule(sum(content), "s3://proglv-tests/tests/"+sum(content)))
	body, err := store.Await(ctx, sum(content))
	require.NoError(t, err)
	assert.Equal(t, content, string(body))
	assert.Equal(t, "proglv-tests", client.bucket)
	assert.Equal(t, "tests/"+sum(content), client.key)
}

func TestScheduleRetriesFailedDownload(t *testing.T) {
	const content = "7\n"
	srv := newServer(t, nil)
	store, ctx := newStore(t, t.TempDir())
	go store.Start(ctx)

	require.NoError(t, store.Schedule(sum(content), srv.URL+"/late"))
	_, err := store.Await(ctx, sum(content))
	require.Error(t, err)

	srv.files.Store("/late", []byte(content))
	require.NoError(t, store.Schedule(sum(content), srv.URL+"/late"))
	body, err := store.Await(ctx, sum(content))
	require.NoError(t, err)
	assert.Equal(t, content, string(body))
}

func TestConcurrentRetryDownloadsOnce(t *testing.T) {
	const content = "42\n"
	srv := newServer(t, nil)
	store, ctx := newStore(t, t.TempDir())
	go store.Start(ctx)

	require.NoError(t, store.Schedule(sum(content), srv.URL+"/f"))
	_, err := store.Await(ctx, sum(content))
	require.Error(t, err)
	srv.files.Store("/f", []byte(content))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Schedule(sum(content), srv.URL+"/f"); err != nil {
				errs <- err
				return
			}
			awaitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			body, err := store.Await(awaitCtx, sum(content))
			if err == nil && string(body) != content {
				err = fmt.Errorf("got %q", body)
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestHTTPFetcherHasTimeout(t *testing.T) {
	stalled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-stalled:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(stalled)

	f := testfiles.NewHTTPFetcher(&http.Client{Timeout: 100 * time.Millisecond})
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	started := time.Now()
	_, _, err = f.Fetch(context.Background(), u)
	require.Error(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, 5*time.Minute, testfiles.DefaultHTTPTimeout)
}
