package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"microspark/internal/router"
)

// DefaultMaxBodySize caps buffered request bodies (10 MB)
const DefaultMaxBodySize = 10 << 20

// BodyParserConfig configures the BodyParser middleware
type BodyParserConfig struct {
	// MaxBytes is the largest accepted body; larger bodies fail with 413.
	// Default: 10 MB
	MaxBytes int64
}

// BodyParser buffers the whole request body and attaches it to
// Context.Body:
//
//   - application/json: the decoded value, or the raw text if it is not
//     valid JSON
//   - application/x-www-form-urlencoded: url.Values
//   - anything else: the raw text
//
// The body is read at most once per request.
func BodyParser(config *BodyParserConfig) router.Middleware {
	maxBytes := int64(DefaultMaxBodySize)
	if config != nil && config.MaxBytes > 0 {
		maxBytes = config.MaxBytes
	}

	return func(c *router.Context) (router.Result, error) {
		if c.BodyParsed() {
			return router.Next(), nil
		}
		body, err := readBody(c, maxBytes)
		if err != nil {
			return router.Next(), err
		}
		c.SetBody(body)
		return router.Next(), nil
	}
}

func readBody(c *router.Context, maxBytes int64) (any, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return "", nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, router.WrapHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}

	return decodeBody(c.Request.Header.Get("Content-Type"), data), nil
}

func decodeBody(contentType string, data []byte) any {
	text := string(data)
	switch {
	case strings.Contains(contentType, "application/json"):
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return text
		}
		return v
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		// ParseQuery keeps every pair it could decode
		values, _ := url.ParseQuery(text)
		return values
	default:
		return text
	}
}
