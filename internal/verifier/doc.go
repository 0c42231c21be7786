// Package verifier confirms that copied objects match expectations by
// comparing remote metadata across each adjacent pair of a planned chain.
package verifier
