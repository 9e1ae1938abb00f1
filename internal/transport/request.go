package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/stocksync/pkg/errors"
)

// Request describes one logical call. The body is held as bytes so that the
// exact request can be reissued on retry.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Header      http.Header
}

// NewJSONRequest encodes body as the JSON payload of a request.
func NewJSONRequest(method, rawURL string, body any) (*Request, error) {
	req := &Request{Method: method, URL: rawURL}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
		req.Body = payload
		req.ContentType = "application/json"
	}
	return req, nil
}

// NewFormRequest encodes values as an urlencoded POST body.
func NewFormRequest(rawURL string, values url.Values) *Request {
	return &Request{
		Method:      http.MethodPost,
		URL:         rawURL,
		Body:        []byte(values.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeResponse decodes a JSON response into the target structure. A
// content-less response leaves target untouched and is not an error.
func DecodeResponse(resp *Response, target any) error {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// NextLink returns the URL tagged rel="next" in an RFC 8288 Link header, or ""
// when there is none.
func NextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, part := range strings.Split(value, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range segments[1:] {
				param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
				if param == `rel="next"` || param == "rel=next" {
					return target[1 : len(target)-1]
				}
			}
		}
	}
	return ""
}

// retryAfter reads the server's requested backoff. Seconds may be fractional;
// an HTTP date is also accepted. Missing or unparsable values yield fallback.
func retryAfter(header http.Header, now time.Time, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
