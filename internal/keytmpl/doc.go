// Package keytmpl compiles key templates into matchers and formatters.
//
// A template is a path pattern carrying {name} placeholders, e.g.
// "{year}/{month}/{rest}". A compiled source template parses structure out
// of an object key; a compiled destination template renders a new key from
// the captured values merged over a frozen set of default attributes.
package keytmpl
