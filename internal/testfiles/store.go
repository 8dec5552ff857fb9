// Package testfiles keeps a content-addressed cache of test inputs and
// answers, fetching missing ones in the background.
package testfiles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotScheduled = errors.New("file has not been scheduled")
	ErrIntegrity    = errors.New("file content does not match its sha256")
	ErrBadKey       = errors.New("invalid sha256 key")
)

const queueSize = 10000

// Fetcher opens the object behind a URL. contentType may be empty.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (body io.ReadCloser, contentType string, err error)
}

type entry struct {
	url     string
	started atomic.Bool
	done    chan struct{}
	err     error
}

type Store struct {
	dir    string
	tmpDir string

	fetchers map[string]Fetcher
	files    *xsync.MapOf[string, *entry]

	scheduled chan string
	awaited   chan string
	workers   int
	log       *slog.Logger
}

// New creates a store keeping its files under dir. Plain http and https
// URLs are fetched out of the box; other schemes need Register.
func New(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		dir:       filepath.Join(dir, "files"),
		tmpDir:    filepath.Join(dir, "tmp"),
		fetchers:  map[string]Fetcher{},
		files:     xsync.NewMapOf[string, *entry](),
		scheduled: make(chan string, queueSize),
		awaited:   make(chan string, queueSize),
		workers:   4,
		log:       log,
	}
	for _, d := range []string{s.dir, s.tmpDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create file store directory: %w", err)
		}
	}
	httpFetcher := NewHTTPFetcher(nil)
	s.Register("http", httpFetcher)
	s.Register("https", httpFetcher)
	return s, nil
}

// Register sets the fetcher for a URL scheme. It must be called before Start.
func (s *Store) Register(scheme string, f Fetcher) {
	s.fetchers[scheme] = f
}

// Start downloads scheduled files until ctx is done, preferring the ones
// somebody is waiting for.
func (s *Store) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for {
		var key string
		select {
		case <-ctx.Done():
			g.Wait()
			return nil
		case key = <-s.awaited:
		default:
			select {
			case <-ctx.Done():
				g.Wait()
				return nil
			case key = <-s.awaited:
			case key = <-s.scheduled:
			}
		}
		e, ok := s.files.Load(key)
		if !ok || !e.started.CompareAndSwap(false, true) {
			continue
		}
		g.Go(func() error {
			e.err = s.download(ctx, key, e.url)
			if e.err != nil {
				s.log.Error("failed to download test file", "sha256", key, "url", e.url, "error", e.err)
			}
			close(e.done)
			return nil
		})
	}
}

// Schedule queues a download of url unless the file is already cached or
// scheduled.
func (s *Store) Schedule(sha256Hex string, rawURL string) error {
	if !validKey(sha256Hex) {
		return fmt.Errorf("%w: %q", ErrBadKey, sha256Hex)
	}
	fresh := false
	s.files.Compute(sha256Hex, func(old *entry, loaded bool) (*entry, bool) {
		// a failed download is retried with a new entry
		if loaded && !old.failed() {
			return old, false
		}
		e := s.newEntry(sha256Hex, rawURL)
		fresh = !e.started.Load()
		return e, false
	})
	if fresh {
		s.scheduled <- sha256Hex
	}
	return nil
}

// Await blocks until the file is downloaded and returns its content.
func (s *Store) Await(ctx context.Context, sha256Hex string) ([]byte, error) {
	e, ok := s.files.Load(sha256Hex)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotScheduled, sha256Hex)
	}
	if !e.started.Load() {
		select {
		case s.awaited <- sha256Hex:
		default:
		}
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	data, err := os.ReadFile(s.path(sha256Hex))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", sha256Hex, err)
	}
	return data, nil
}

func (s *Store) newEntry(key, rawURL string) *entry {
	e := &entry{url: rawURL, done: make(chan struct{})}
	if _, err := os.Stat(s.path(key)); err == nil {
		e.started.Store(true)
		close(e.done)
	}
	return e
}

func (e *entry) failed() bool {
	select {
	case <-e.done:
		return e.err != nil
	default:
		return false
	}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) download(ctx context.Context, key, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	f, ok := s.fetchers[u.Scheme]
	if !ok {
		return fmt.Errorf("no fetcher for url scheme %q", u.Scheme)
	}

	s.log.Debug("downloading test file", "sha256", key, "url", rawURL)
	body, contentType, err := f.Fetch(ctx, u)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer body.Close()

	var r io.Reader = body
	if contentType == "application/zstd" || strings.HasSuffix(u.Path, ".zst") {
		d, err := zstd.NewReader(body)
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer d.Close()
		r = d
	}

	tmp, err := os.CreateTemp(s.tmpDir, key+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return fmt.Errorf("write file %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write file %s: %w", key, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != key {
		return fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, key, got)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("move file %s to file store: %w", key, err)
	}
	return nil
}

func validKey(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
