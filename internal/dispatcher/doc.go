// Package dispatcher executes the data movement for one planned chain,
// choosing the cheapest valid copy strategy per adjacent endpoint pair.
package dispatcher
