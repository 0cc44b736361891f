package task

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Default per-task limits.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultChunkSize = 1024
	DefaultMaxBody   = 64 * 1024
)

// Factory builds tasks without exposing their internal state machines.
type Factory struct {
	Transport Transport
	FS        afero.Fs
	Timeout   time.Duration
	ChunkSize int
	MaxBody   int64

	// Kick, if set, is called after each file of a batch is stored.
	Kick func()
}

type options struct {
	timeout   time.Duration
	chunkSize int
	maxBody   int64
	abort     func() bool
	kick      func()
}

// Option adjusts a single task.
type Option func(*options)

// WithAbort makes the task fail with ErrAborted on the first step after
// abort returns true.
func WithAbort(abort func() bool) Option {
	return func(o *options) { o.abort = abort }
}

// WithTimeout overrides the factory timeout for one task.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func (f *Factory) options(opts []Option) options {
	o := options{
		timeout:   f.Timeout,
		chunkSize: f.ChunkSize,
		maxBody:   f.MaxBody,
		kick:      f.Kick,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.maxBody == 0 {
		o.maxBody = DefaultMaxBody
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFetch builds an HTTP GET task. It returns nil when the URL is empty or
// malformed, onComplete is nil, or the factory has no transport.
func (f *Factory) NewFetch(rawURL string, onComplete Callback, preprocess Preprocess, opts ...Option) *Task {
	if f.Transport == nil || onComplete == nil {
		return nil
	}
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil
	}
	return New("fetch", newFetch(f.Transport, u, nil, f.options(opts)), onComplete, preprocess)
}

// NewBatchFetch builds a task downloading 0.jpg .. count-1.jpg from baseURL
// into dir. It returns nil when preconditions fail.
func (f *Factory) NewBatchFetch(dir, baseURL string, count int, onComplete Callback, opts ...Option) *Task {
	if f.Transport == nil || f.FS == nil || onComplete == nil || count < 1 || strings.TrimSpace(dir) == "" {
		return nil
	}
	u, err := NormalizeURL(baseURL)
	if err != nil {
		return nil
	}
	b := &batch{
		fs:        f.FS,
		transport: f.Transport,
		dir:       dir,
		baseURL:   strings.TrimRight(u, "/"),
		count:     count,
		opts:      f.options(opts),
	}
	b.opts.maxBody = -1 // images are streamed to disk, not held in memory
	return New("batch", b, onComplete, nil)
}

// NormalizeURL validates raw and rewrites well-known hosts: a missing
// scheme becomes https, and github.com tree URLs become their
// raw.githubusercontent.com equivalent.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("empty url")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	if u.Host == "github.com" && u.Scheme == "https" {
		u.Host = "raw.githubusercontent.com"
		u.Path = strings.Replace(u.Path, "/tree/", "/refs/heads/", 1)
	}
	return u.String(), nil
}
