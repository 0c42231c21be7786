// Package planner expands one source key into the ordered per-endpoint
// list of planned files the dispatcher copies along and the verifier checks.
package planner
