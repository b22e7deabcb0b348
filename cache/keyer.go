package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jonwraymond/datahub/query"
)

const (
	// Suffix terminates every cache entry filename.
	Suffix = ".cbor.gz"

	// MaxFilenameLength is the longest direct filename before keys switch to
	// the digest form.
	MaxFilenameLength = 250
)

var pathSanitizer = strings.NewReplacer(" ", "_", "&", "_", "?", "_")

// Keyer derives cache entry locations from a query call.
//
// Contract:
// - Determinism: same inputs produce the same path regardless of map order.
// - Purity: no I/O; writers and fast-cache readers must agree byte for byte.
type Keyer interface {
	Path(root, stem, queryName string, params query.Params) string
}

// DefaultKeyer renders "<query>?k=v&k=v.cbor.gz" filenames.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() DefaultKeyer {
	return DefaultKeyer{}
}

// Filename returns the unsanitized entry filename for a call.
//
// Parameters are sorted by name and every name and value is query-escaped,
// so '&', '=', path separators and the other filesystem-hostile characters
// never appear raw and distinct calls never share a filename. When the
// direct form exceeds MaxFilenameLength the parameters are replaced by
// "_params=<md5(names)>_<md5(values)>" over the comma-joined escaped strings.
func (DefaultKeyer) Filename(queryName string, params query.Params) string {
	names := params.Names()

	escNames := make([]string, len(names))
	escValues := make([]string, len(names))
	pairs := make([]string, len(names))
	for i, k := range names {
		escNames[i] = url.QueryEscape(k)
		escValues[i] = url.QueryEscape(params[k])
		pairs[i] = escNames[i] + "=" + escValues[i]
	}
	name := queryName + "?" + strings.Join(pairs, "&") + Suffix
	if len(name) <= MaxFilenameLength {
		return name
	}
	return queryName + "?_params=" + md5Hex(strings.Join(escNames, ",")) + "_" + md5Hex(strings.Join(escValues, ",")) + Suffix
}

// Path returns the full entry path <root>/<stem>/<filename> with spaces, '&'
// and '?' replaced by '_'.
func (k DefaultKeyer) Path(root, stem, queryName string, params query.Params) string {
	return pathSanitizer.Replace(filepath.Join(root, stem, k.Filename(queryName, params)))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var _ Keyer = DefaultKeyer{}
