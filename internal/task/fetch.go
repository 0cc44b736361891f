package task

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// fetch streams one GET response into a sink, one bounded read per step.
type fetch struct {
	transport Transport
	url       string
	timeout   time.Duration
	chunk     []byte
	maxBody   int64
	abort     func() bool
	sink      io.Writer
	body      *bytes.Buffer

	req     Request
	started time.Time
	code    int
	n       int64
	done    bool
	err     error
}

func newFetch(tr Transport, url string, sink io.Writer, o options) *fetch {
	f := &fetch{
		transport: tr,
		url:       url,
		timeout:   o.timeout,
		chunk:     make([]byte, o.chunkSize),
		maxBody:   o.maxBody,
		abort:     o.abort,
		sink:      sink,
	}
	if sink == nil {
		f.body = &bytes.Buffer{}
		f.sink = f.body
	}
	return f
}

func (f *fetch) Start(now time.Time) error {
	f.started = now
	f.req = f.transport.NewRequest(f.url)
	if err := f.req.Begin(); err != nil {
		f.req.Close()
		f.done = true
		f.err = err
		return err
	}
	return nil
}

func (f *fetch) Step(now time.Time) Outcome {
	if f.done {
		if f.err != nil {
			return Error
		}
		return Done
	}
	if f.abort != nil && f.abort() {
		return f.fail(ErrAborted)
	}
	if f.timeout > 0 && now.Sub(f.started) > f.timeout {
		return f.fail(fmt.Errorf("%w after %v: %s", ErrTimeout, f.timeout, f.url))
	}

	if f.code == 0 {
		code, ready, err := f.req.Status()
		if err != nil {
			return f.fail(err)
		}
		if !ready {
			return Running
		}
		if code < 200 || code > 299 {
			f.code = code
			return f.fail(&StatusError{Code: code, URL: f.url})
		}
		f.code = code
	}

	n, eof, err := f.req.Read(f.chunk)
	if n > 0 {
		f.n += int64(n)
		if f.maxBody > 0 && f.n > f.maxBody {
			return f.fail(fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, f.maxBody, f.url))
		}
		if _, werr := f.sink.Write(f.chunk[:n]); werr != nil {
			return f.fail(fmt.Errorf("write: %w", werr))
		}
	}
	if err != nil {
		return f.fail(err)
	}
	if eof {
		f.req.Close()
		f.done = true
		return Done
	}
	return Running
}

func (f *fetch) fail(err error) Outcome {
	if f.req != nil {
		f.req.Close()
	}
	f.done = true
	f.err = err
	return Error
}

func (f *fetch) Finished() bool {
	return f.done
}

func (f *fetch) Result() Result {
	res := Result{Code: f.code, Bytes: f.n, Err: f.err}
	if f.body != nil && f.err == nil {
		res.Body = f.body.Bytes()
	}
	return res
}
