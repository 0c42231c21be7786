// Package objstore represents configured object-store endpoints and wraps
// the raw S3 operations the transfer engine needs: streamed reads (with
// optional on-the-fly unpacking), streamed writes, server-side copies,
// metadata stats and filtered listings.
package objstore
