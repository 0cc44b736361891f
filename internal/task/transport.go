package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Request is a network request that never blocks its caller. Begin starts
// it; Status and Read report only what has already arrived.
type Request interface {
	Begin() error
	// Status returns the response code once headers have arrived.
	Status() (code int, ready bool, err error)
	// Read copies buffered body bytes into p. eof is true once the body is
	// complete and fully drained.
	Read(p []byte) (n int, eof bool, err error)
	Close() error
}

// Transport creates requests.
type Transport interface {
	NewRequest(url string) Request
}

// HTTPTransport performs GET requests on background goroutines and buffers
// at most Window bytes of body ahead of the reader.
type HTTPTransport struct {
	Client *http.Client
	Window int
}

// NewHTTPTransport returns a transport using client (http.DefaultClient if nil).
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Client: client, Window: 16 * 1024}
}

// NewRequest implements Transport.
func (t *HTTPTransport) NewRequest(url string) Request {
	window := t.Window
	if window <= 0 {
		window = 16 * 1024
	}
	r := &httpRequest{client: t.Client, url: url, window: window}
	r.cond = sync.NewCond(&r.mu)
	return r
}

type httpRequest struct {
	client *http.Client
	url    string
	window int
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	code   int
	ready  bool
	buf    bytes.Buffer
	eof    bool
	err    error
	closed bool
}

func (r *httpRequest) Begin() error {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("build request: %w", err)
	}
	r.cancel = cancel
	go r.run(req)
	return nil
}

func (r *httpRequest) run(req *http.Request) {
	resp, err := r.client.Do(req)
	if err != nil {
		r.fail(fmt.Errorf("connect %s: %w", r.url, err))
		return
	}
	defer resp.Body.Close()

	r.mu.Lock()
	r.code = resp.StatusCode
	r.ready = true
	r.mu.Unlock()

	chunk := make([]byte, 4096)
	for {
		r.mu.Lock()
		for r.buf.Len() >= r.window && !r.closed {
			r.cond.Wait()
		}
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}

		n, err := resp.Body.Read(chunk)
		r.mu.Lock()
		r.buf.Write(chunk[:n])
		if err == io.EOF {
			r.eof = true
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		if err != nil {
			r.fail(fmt.Errorf("read body: %w", err))
			return
		}
	}
}

func (r *httpRequest) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *httpRequest) Status() (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return r.code, true, nil
	}
	return 0, false, r.err
}

func (r *httpRequest) Read(p []byte) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() > 0 {
		n, _ := r.buf.Read(p)
		r.cond.Signal()
		return n, false, nil
	}
	if r.err != nil {
		return 0, false, r.err
	}
	return 0, r.eof, nil
}

func (r *httpRequest) Close() error {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
