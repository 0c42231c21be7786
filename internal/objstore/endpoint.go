package objstore

import (
	"maps"
	"strings"
)

// SourceName is the reserved endpoint name marking the batch source.
const SourceName = "source"

// Default endpoint URLs, applied when a configured endpoint does not carry
// an explicit one.
const (
	DefaultSourceEndpointURL      = "https://s3.amazonaws.com"
	DefaultDestinationEndpointURL = "https://s3.upshift.redhat.com"
)

// Credentials holds a static key pair for one endpoint.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Options is the per-endpoint option set. Values are kept as strings so the
// set stays comparable as a whole; boolean options are "true"/"false".
type Options map[string]string

// Bool reports whether the named option is set to a truthy value.
func (o Options) Bool(name string) bool {
	switch strings.ToLower(o[name]) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// Unpack reports whether reads from this endpoint's perspective should
// transparently decompress a single compression wrapper.
func (o Options) Unpack() bool { return o.Bool("unpack") }

// Equal compares two option sets for structural equality.
func (o Options) Equal(other Options) bool {
	return maps.Equal(o, other)
}

// Endpoint is one configured object-store location. Exactly one endpoint in
// a run acts as source; the rest are destinations, order-preserving.
// Endpoints are immutable after construction.
type Endpoint struct {
	Name        string
	Credentials Credentials
	Bucket      string
	Prefix      string
	EndpointURL string
	Template    string
	Options     Options
}

// IsSource reports whether this endpoint is the batch source.
func (e *Endpoint) IsSource() bool { return e.Name == SourceName }

// Equal reports whether two endpoints address the same physical store with
// the same representation: credentials, endpoint URL and option set. Name,
// base path and template are deliberately excluded, so two differently
// named entries backed by the same store compare equal and become eligible
// for server-side copies.
func (e *Endpoint) Equal(other *Endpoint) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Credentials == other.Credentials &&
		e.EndpointURL == other.EndpointURL &&
		e.Options.Equal(other.Options)
}

// FullKey resolves a key relative to the endpoint's prefix.
func (e *Endpoint) FullKey(key string) string {
	if e.Prefix == "" {
		return key
	}
	return e.Prefix + "/" + key
}

// RelKey strips the endpoint's prefix off an absolute key.
func (e *Endpoint) RelKey(key string) string {
	if e.Prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, e.Prefix+"/")
}

// String implements fmt.Stringer; endpoints are logged by name.
func (e *Endpoint) String() string { return e.Name }

// SplitBasePath splits a configured base path into bucket and optional
// prefix. The prefix defaults to empty and never carries a trailing slash.
func SplitBasePath(basePath string) (bucket, prefix string) {
	basePath = strings.Trim(basePath, "/")
	bucket, prefix, _ = strings.Cut(basePath, "/")
	return bucket, strings.TrimSuffix(prefix, "/")
}
