package keytmpl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/s3gate/s3gate/errors"
)

// packedSuffix matches a short compressed-file extension (2-3 word
// characters) at the end of a key. The unpack option strips exactly one
// such extension.
const packedSuffix = `\.\w{2,3}$`

// catchAll is the template both sides default to when unpack is requested
// without explicit templates, so suffix stripping still applies.
const catchAll = "{all}"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// segment is a single piece of a parsed template: either a literal or a
// placeholder field, never both.
type segment struct {
	lit   string
	field string
}

// CompiledTemplate is a template compiled into a matcher and a formatter.
// Instances are immutable and safe for concurrent use.
type CompiledTemplate struct {
	raw      string
	segments []segment
	fields   []string

	// exact requires the whole key to match; packed allows a trailing
	// compressed-file extension beyond the template.
	exact  *regexp.Regexp
	packed *regexp.Regexp
}

// Raw returns the original template string.
func (t *CompiledTemplate) Raw() string { return t.raw }

// Fields returns the placeholder names in order of appearance.
func (t *CompiledTemplate) Fields() []string { return t.fields }

// Match is the tagged result of matching a key against a compiled template.
type Match struct {
	Matched bool
	Values  map[string]string
}

// Match matches key against the template. With unpack set, the key must
// additionally carry a packed extension beyond the template shape.
func (t *CompiledTemplate) Match(key string, unpack bool) Match {
	re := t.exact
	if unpack {
		re = t.packed
	}
	m := re.FindStringSubmatch(key)
	if m == nil {
		return Match{}
	}
	values := make(map[string]string, len(t.fields))
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			values[name] = m[i]
		}
	}
	return Match{Matched: true, Values: values}
}

// Render substitutes values into the template. Placeholders with no value
// available yield ErrUnresolvedPlaceholder.
func (t *CompiledTemplate) Render(values map[string]string) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		if s.field == "" {
			b.WriteString(s.lit)
			continue
		}
		v, ok := values[s.field]
		if !ok {
			return "", errors.NewError("render", errors.ErrUnresolvedPlaceholder).
				WithMessage(fmt.Sprintf("no value for {%s} in %q", s.field, t.raw))
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Compiler compiles templates and memoizes the results. Compilation is a
// pure function of the template string, so entries never expire; the cache
// is bounded and engine-scoped rather than a process-global singleton.
type Compiler struct {
	mu      sync.Mutex
	cache   map[string]*CompiledTemplate
	maxSize int
}

// DefaultCacheSize bounds the number of memoized compiled templates.
const DefaultCacheSize = 128

// NewCompiler creates a template compiler with a bounded memo cache.
func NewCompiler() *Compiler {
	return &Compiler{
		cache:   make(map[string]*CompiledTemplate),
		maxSize: DefaultCacheSize,
	}
}

// Compile parses and compiles a template, reusing a cached result when the
// same template string was seen before.
func (c *Compiler) Compile(template string) (*CompiledTemplate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.cache[template]; ok {
		return t, nil
	}

	t, err := compile(template)
	if err != nil {
		return nil, err
	}

	if len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			break
		}
	}
	c.cache[template] = t
	return t, nil
}

func compile(template string) (*CompiledTemplate, error) {
	segments, err := parse(template)
	if err != nil {
		return nil, err
	}

	var fields []string
	var pattern strings.Builder
	pattern.WriteString("^")
	for _, s := range segments {
		if s.field != "" {
			fields = append(fields, s.field)
			fmt.Fprintf(&pattern, "(?P<%s>.*?)", s.field)
			continue
		}
		pattern.WriteString(escapeLiteral(s.lit))
	}

	exact, err := regexp.Compile(pattern.String() + "$")
	if err != nil {
		return nil, errors.NewError("compile", errors.ErrTemplateSyntax).
			WithMessage(fmt.Sprintf("template %q: %v", template, err))
	}
	packed, err := regexp.Compile(pattern.String() + packedSuffix)
	if err != nil {
		return nil, errors.NewError("compile", errors.ErrTemplateSyntax).
			WithMessage(fmt.Sprintf("template %q: %v", template, err))
	}

	return &CompiledTemplate{
		raw:      template,
		segments: segments,
		fields:   fields,
		exact:    exact,
		packed:   packed,
	}, nil
}

// parse splits a template into literal and placeholder segments. {{ and }}
// are literal braces; any other unbalanced brace is a syntax error.
func parse(template string) ([]segment, error) {
	var segments []segment
	var lit strings.Builder
	seen := make(map[string]bool)

	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, segment{lit: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, syntaxError(template, "unmatched '{'")
			}
			name := template[i+1 : i+1+end]
			if !fieldName.MatchString(name) {
				return nil, syntaxError(template, fmt.Sprintf("invalid placeholder %q", name))
			}
			// Go's regexp would accept a duplicate named group, but a
			// repeated placeholder makes the capture ambiguous.
			if seen[name] {
				return nil, syntaxError(template, fmt.Sprintf("duplicate placeholder %q", name))
			}
			seen[name] = true
			flush()
			segments = append(segments, segment{field: name})
			i += end + 2
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, syntaxError(template, "unmatched '}'")
		default:
			lit.WriteByte(template[i])
			i++
		}
	}
	flush()
	return segments, nil
}

func syntaxError(template, msg string) error {
	return errors.NewError("parse", errors.ErrTemplateSyntax).
		WithMessage(fmt.Sprintf("template %q: %s", template, msg))
}

// escapeLiteral escapes the characters in literal template text that carry
// meaning in a regular expression. Dots are the common case in object keys.
func escapeLiteral(lit string) string {
	var b strings.Builder
	for _, r := range lit {
		switch r {
		case '.', '{', '}', '(', ')', '[', ']', '*', '+', '?', '^', '$', '|', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Attributes is a frozen snapshot of timestamp-derived template values.
// It is computed once per batch and threaded into every key plan, so all
// objects in one run are stamped with the same path components.
type Attributes map[string]string

// DefaultAttributes builds the attribute snapshot for the given instant.
// Weekday is zero-based starting from Monday.
func DefaultAttributes(now time.Time) Attributes {
	return Attributes{
		"datetime": now.Format("2006-01-02T15:04:05"),
		"date":     now.Format("2006-01-02"),
		"year":     now.Format("2006"),
		"month":    now.Format("01"),
		"day":      now.Format("02"),
		"hour":     now.Format("15"),
		"minute":   now.Format("04"),
		"second":   now.Format("05"),
		"weekday":  strconv.Itoa((int(now.Weekday()) + 6) % 7),
	}
}

// FormatKey derives a destination key from a source key.
//
// The source template parses structure out of the key; the captured values,
// merged over attrs (captures win on collision), are substituted into the
// destination template. When either template is absent the key passes
// through unchanged, unless unpack is set, in which case both templates
// default to a single catch-all placeholder so that the packed extension
// is still stripped.
func (c *Compiler) FormatKey(key, srcTemplate, dstTemplate string, unpack bool, attrs Attributes) (string, error) {
	if srcTemplate == "" || dstTemplate == "" {
		if !unpack {
			return key, nil
		}
		srcTemplate, dstTemplate = catchAll, catchAll
	}

	src, err := c.Compile(srcTemplate)
	if err != nil {
		return "", err
	}
	dst, err := c.Compile(dstTemplate)
	if err != nil {
		return "", err
	}

	m := src.Match(key, unpack)
	if !m.Matched {
		return "", errors.NewError("format", errors.ErrKeyMismatch).WithKey(key).
			WithMessage(fmt.Sprintf("template %q", srcTemplate))
	}

	values := make(map[string]string, len(attrs)+len(m.Values))
	for k, v := range attrs {
		values[k] = v
	}
	for k, v := range m.Values {
		values[k] = v
	}

	return dst.Render(values)
}
