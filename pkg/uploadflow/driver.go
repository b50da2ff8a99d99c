package uploadflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	ErrNoFileSelected     = errors.New("uploadflow: no file selected")
	ErrOperationInFlight  = errors.New("uploadflow: operation already in flight")
	ErrNothingToRetryFrom = errors.New("uploadflow: retry is only valid from the error state")
)

// Grant is the scoped upload credential returned by the server.
type Grant struct {
	ObjectKey string      `json:"object_key"`
	UploadURL string      `json:"upload_url"`
	Method    string      `json:"method"`
	Header    http.Header `json:"header,omitempty"`
	ExpiresIn int         `json:"expires_in"`
}

// GrantRequester asks the server for an upload grant for the given file.
type GrantRequester interface {
	RequestGrant(ctx context.Context, file File) (*Grant, error)
}

// Uploader transfers photo bytes to the object store using a grant.
// Implementations call onProgress with 0-100 as the transfer advances.
type Uploader interface {
	Upload(ctx context.Context, grant *Grant, body io.Reader, onProgress func(percent int)) error
}

// Analyzer asks the server to analyze an uploaded object.
type Analyzer[R any] interface {
	Analyze(ctx context.Context, objectKey string) (*R, error)
}

// Driver owns one upload session and performs its I/O. The reducer stays
// pure; the driver awaits network operations and dispatches the resulting
// events. At most one Run may be in flight per driver; concurrent calls get
// ErrOperationInFlight instead of racing the session.
type Driver[R any] struct {
	grants   GrantRequester
	uploader Uploader
	analyzer Analyzer[R]

	mu      sync.Mutex
	busy    bool
	session Session[R]
}

// NewDriver creates a driver with a fresh idle session.
func NewDriver[R any](grants GrantRequester, uploader Uploader, analyzer Analyzer[R]) *Driver[R] {
	return &Driver[R]{
		grants:   grants,
		uploader: uploader,
		analyzer: analyzer,
		session:  NewSession[R](),
	}
}

// Session returns a copy of the current session.
func (d *Driver[R]) Session() Session[R] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Select stores the chosen file, discarding any previous result or error.
func (d *Driver[R]) Select(f File) Session[R] {
	return d.dispatch(Select{File: f})
}

// Retry returns an errored session to selected, keeping the file.
func (d *Driver[R]) Retry() (Session[R], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session.State != StateError {
		return d.session, ErrNothingToRetryFrom
	}
	d.session = Transition(d.session, Retry{})
	return d.session, nil
}

// Reset wipes the session back to idle.
func (d *Driver[R]) Reset() Session[R] {
	return d.dispatch(Reset{})
}

// Run executes the upload-then-analyze flow for the selected file, reading
// photo bytes from body. Any failure lands the session in the error state
// with a message; retries are strictly user-triggered via Retry, never
// automatic, so a flaky network cannot duplicate billed analysis calls.
func (d *Driver[R]) Run(ctx context.Context, body io.Reader) (Session[R], error) {
	d.mu.Lock()
	if d.busy {
		s := d.session
		d.mu.Unlock()
		return s, ErrOperationInFlight
	}
	if d.session.State != StateSelected || d.session.File == nil {
		s := d.session
		d.mu.Unlock()
		return s, ErrNoFileSelected
	}
	file := *d.session.File
	d.busy = true
	d.session = Transition(d.session, StartUpload{})
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	grant, err := d.grants.RequestGrant(ctx, file)
	if err != nil {
		return d.dispatch(Fail{Message: "could not get an upload grant: " + err.Error()}), nil
	}

	err = d.uploader.Upload(ctx, grant, body, func(percent int) {
		d.dispatch(Progress{Percent: percent})
	})
	if err != nil {
		return d.dispatch(Fail{Message: "upload failed: " + err.Error()}), nil
	}
	d.dispatch(UploadComplete{ObjectKey: grant.ObjectKey})

	record, err := d.analyzer.Analyze(ctx, grant.ObjectKey)
	if err != nil {
		return d.dispatch(Fail{Message: "analysis failed: " + err.Error()}), nil
	}
	return d.dispatch(AnalyzeComplete[R]{Record: record}), nil
}

// dispatch applies one event under the session lock.
func (d *Driver[R]) dispatch(e Event) Session[R] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = Transition(d.session, e)
	return d.session
}

// HTTPUploader uploads photo bytes with a plain HTTP client honoring the
// grant's method, URL, and signed headers.
type HTTPUploader struct {
	Client *http.Client
}

// Upload PUTs the body to the presigned URL. Progress is reported at start
// and completion; chunked progress would need a counting reader, which the
// single-request PUT does not expose.
func (u *HTTPUploader) Upload(ctx context.Context, grant *Grant, body io.Reader, onProgress func(int)) error {
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	method := grant.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, grant.UploadURL, body)
	if err != nil {
		return err
	}
	for k, vs := range grant.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if onProgress != nil {
		onProgress(0)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("uploadflow: object store rejected upload: " + resp.Status)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

var _ Uploader = (*HTTPUploader)(nil)
