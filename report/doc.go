// Package report sends failure alert emails for finished transfer batches.
package report
