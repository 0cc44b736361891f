package task

import "errors"

// FakeResponse scripts one URL of a FakeTransport.
type FakeResponse struct {
	Code int
	Body []byte

	// HeaderSteps is the number of Status calls that report "not ready".
	HeaderSteps int
	// BeginError, if set, is returned by Begin.
	BeginError error
	// ConnectError, if set, is reported by Status instead of a code.
	ConnectError error
	// Hang keeps the request waiting for headers forever.
	Hang bool
}

// FakeTransport is a test double serving scripted responses by URL.
// Unknown URLs answer 404.
type FakeTransport struct {
	Responses map[string]FakeResponse

	// Requested lists URLs in the order requests were begun.
	Requested []string
	// Open counts requests begun but not closed.
	Open int
}

// NewFakeTransport creates an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Responses: make(map[string]FakeResponse)}
}

// Set scripts a response for url.
func (f *FakeTransport) Set(url string, code int, body string) {
	f.Responses[url] = FakeResponse{Code: code, Body: []byte(body)}
}

// NewRequest implements Transport.
func (f *FakeTransport) NewRequest(url string) Request {
	resp, ok := f.Responses[url]
	if !ok {
		resp = FakeResponse{Code: 404}
	}
	return &fakeRequest{t: f, url: url, resp: resp}
}

type fakeRequest struct {
	t      *FakeTransport
	url    string
	resp   FakeResponse
	off    int
	begun  bool
	closed bool
}

func (r *fakeRequest) Begin() error {
	if r.resp.BeginError != nil {
		return r.resp.BeginError
	}
	r.begun = true
	r.t.Requested = append(r.t.Requested, r.url)
	r.t.Open++
	return nil
}

func (r *fakeRequest) Status() (int, bool, error) {
	if !r.begun {
		return 0, false, errors.New("request not begun")
	}
	if r.resp.ConnectError != nil {
		return 0, false, r.resp.ConnectError
	}
	if r.resp.Hang {
		return 0, false, nil
	}
	if r.resp.HeaderSteps > 0 {
		r.resp.HeaderSteps--
		return 0, false, nil
	}
	return r.resp.Code, true, nil
}

func (r *fakeRequest) Read(p []byte) (int, bool, error) {
	if r.off >= len(r.resp.Body) {
		return 0, true, nil
	}
	n := copy(p, r.resp.Body[r.off:])
	r.off += n
	return n, false, nil
}

func (r *fakeRequest) Close() error {
	if r.begun && !r.closed {
		r.closed = true
		r.t.Open--
	}
	return nil
}
