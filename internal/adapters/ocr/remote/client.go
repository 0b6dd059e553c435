// Package remote is the client for the hosted OCR.space style recognition endpoint
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
)

const (
	endpointDefault = "https://api.ocr.space/parse/image"
	// DefaultTimeout bounds one recognition call end to end
	DefaultTimeout  = 30 * time.Second
	defaultLanguage = "eng"
	defaultUA       = "labelscan-agent"
	maxErrorBody    = 4 << 10
)

// Options configures the Client
type Options struct {
	Endpoint  string
	APIKey    string
	Language  string
	Engine    string // OCREngine form value, empty leaves the service default
	UserAgent string
	Timeout   time.Duration

	// HTTP is the client used for the call; nil means a plain client
	// production passes the cache transport, which lets POST straight through
	HTTP *http.Client
}

// Client posts enhanced images and returns the parsed text
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// StatusError carries the status of a non 2xx answer
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ocr service returned %d %s", e.Status, http.StatusText(e.Status))
}

// ProcessingError carries the message of an answer flagged IsErroredOnProcessing
type ProcessingError struct{ Message string }

func (e *ProcessingError) Error() string { return "ocr processing failed: " + e.Message }

// NewClient creates a new Client with defaults filled in
func NewClient(o Options) *Client {
	if o.Endpoint == "" {
		o.Endpoint = endpointDefault
	}
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	hc := o.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http: hc,
		opts: o,
		log:  *logger.Named("ocr_remote"),
		now:  time.Now,
	}
}

// Timeout returns the effective per call deadline
func (c *Client) Timeout() time.Duration { return c.opts.Timeout }

// response is the subset of the service answer we read
type response struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool         `json:"IsErroredOnProcessing"`
	ErrorMessage          flexMessages `json:"ErrorMessage"`
}

// flexMessages accepts a string, an array of strings or null
type flexMessages []string

func (m *flexMessages) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = flexMessages{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*m = ss
	return nil
}

func (m flexMessages) String() string { return strings.Join(m, "; ") }

// Recognize uploads jpeg under the multipart field "file" and returns the first parsed text
// a missing result reads as empty text, not an error
func (c *Client) Recognize(ctx context.Context, jpeg []byte) (string, error) {
	body, contentType, err := c.form(jpeg)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeEncode, "build ocr request")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.opts.Endpoint, body)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "ocr new request failed")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("apikey", c.opts.APIKey)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", c.classify(ctx, callCtx, err, "ocr request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classify(ctx, callCtx, err, "read ocr response")
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("elapsed", c.now().Sub(start)).
		Msg("ocr response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		se := &StatusError{Status: resp.StatusCode, Body: snippet}
		return "", perr.Wrapf(se, perr.ErrorCodeHTTPStatus, "ocr service status %d", resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "decode ocr response")
	}
	if out.IsErroredOnProcessing {
		msg := out.ErrorMessage.String()
		if msg == "" {
			msg = "unknown processing error"
		}
		return "", perr.Wrap(&ProcessingError{Message: msg}, perr.ErrorCodeAPIProcessing, "ocr processing")
	}
	if len(out.ParsedResults) == 0 {
		return "", nil
	}
	return out.ParsedResults[0].ParsedText, nil
}

// classify separates our deadline from caller cancellation and plain transport failures
func (c *Client) classify(parent, call context.Context, err error, msg string) error {
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		return perr.Wrapf(err, perr.ErrorCodeTimeout, "ocr service timed out after %s", c.opts.Timeout)
	}
	if parent.Err() != nil {
		return perr.Wrap(parent.Err(), perr.ErrorCodeUnavailable, msg)
	}
	return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
}

func (c *Client) form(jpeg []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="label.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("language", c.opts.Language); err != nil {
		return nil, "", err
	}
	if c.opts.Engine != "" {
		if err := mw.WriteField("OCREngine", c.opts.Engine); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
