package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/datahub/frame"
)

// Kind selects a response representation.
type Kind string

const (
	KindCSV       Kind = "csv"
	KindJSON      Kind = "json"
	KindPickle    Kind = "pickle"
	KindBinary    Kind = "binary"
	KindHTML      Kind = "html"
	KindFastCache Kind = "fast_cache"
)

// Content types of each representation.
const (
	ContentTypeCSV       = "text/plain"
	ContentTypeJSON      = "application/json"
	ContentTypeHTML      = "text/html"
	ContentTypeFastCache = "application/fast_cache"
	ContentTypeBinary    = frame.ContentType
)

// FastCachePrefix starts every non-empty fast-cache body.
const FastCachePrefix = "fast_cache://"

var (
	ErrUnknownKind = errors.New("output: unknown output kind")
	ErrMalformed   = errors.New("output: malformed body")
)

// ParseKind resolves an output parameter. Empty selects CSV.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindCSV, nil
	case KindCSV, KindJSON, KindPickle, KindBinary, KindHTML, KindFastCache:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Formatted is a response body with its headers.
type Formatted struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// Format renders an encoded frame payload as kind. Binary kinds pass the
// payload through unchanged.
func Format(payload []byte, kind Kind) (Formatted, error) {
	switch kind {
	case KindPickle, KindBinary:
		return Formatted{Body: payload, ContentType: ContentTypeBinary, ContentEncoding: "gzip"}, nil
	case KindFastCache:
		return Formatted{}, fmt.Errorf("%w: fast_cache is resolved without a payload", ErrUnknownKind)
	}
	f, err := frame.Decode(payload)
	if err != nil {
		return Formatted{}, err
	}
	return FormatFrame(f, kind)
}

// FormatFrame renders f as kind.
func FormatFrame(f *frame.Frame, kind Kind) (Formatted, error) {
	if f == nil {
		return Formatted{}, frame.ErrNilFrame
	}
	switch kind {
	case KindCSV, "":
		body, err := renderCSV(f)
		return Formatted{Body: body, ContentType: ContentTypeCSV}, err
	case KindJSON:
		body, err := renderJSON(f)
		return Formatted{Body: body, ContentType: ContentTypeJSON}, err
	case KindHTML:
		body, err := renderHTML(f)
		return Formatted{Body: body, ContentType: ContentTypeHTML}, err
	case KindPickle, KindBinary:
		payload, err := frame.Encode(f)
		return Formatted{Body: payload, ContentType: ContentTypeBinary, ContentEncoding: "gzip"}, err
	default:
		return Formatted{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// FastCache renders a fast-cache response for path. An empty path yields an
// empty body.
func FastCache(path string) Formatted {
	body := ""
	if path != "" {
		body = FastCachePrefix + path
	}
	return Formatted{Body: []byte(body), ContentType: ContentTypeFastCache}
}

// Parse reads a rendered body back into a frame. Column kinds of text
// representations are inferred from their cells.
func Parse(kind Kind, body []byte) (*frame.Frame, error) {
	switch kind {
	case KindCSV, "":
		return parseCSV(body)
	case KindJSON:
		return parseJSON(body)
	case KindHTML:
		return parseHTML(body)
	case KindPickle, KindBinary:
		return frame.Decode(body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
