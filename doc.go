// Package s3gate moves objects from one S3 source to any number of S3
// destinations in a single batch. Destination keys are derived with key
// templates, copies pick the cheapest viable strategy per destination, and
// every copy is verified against remote metadata before the batch is
// declared done.
//
// The Engine is the entry point:
//
//	cfg, err := config.Load(billy.NewOSFS("/"), "/etc/s3gate", "config.yaml")
//	...
//	engine, err := s3gate.New(cfg)
//	...
//	err = engine.Transfer(ctx, keys)
//
// Transfer reports partial failure: keys that fail after all retry
// attempts are collected and returned together while the remaining keys
// still complete.
package s3gate
