package dispatcher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/objstore"
	"github.com/s3gate/s3gate/internal/planner"
)

// Dispatcher walks a planned chain as adjacent pairs and copies each
// destination with the cheapest strategy that preserves content:
//
//  1. Structurally equal endpoints: server-side copy, no bytes leave the
//     store.
//  2. Different endpoints, identical option sets: plain byte stream copy.
//  3. Differing option sets: stream from the absolute source with the
//     destination's options applied to the read side, so a requested
//     unpack decompresses on the fly.
//
// The fallback in case 3 always reads the original first planned file,
// never a possibly-already-transformed intermediate.
type Dispatcher struct {
	log *logrus.Logger
}

// New creates a dispatcher.
func New(log *logrus.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Copy materializes every destination in the chain. Each destination costs
// exactly one remote read+write or one server-side copy call. The first
// error aborts the remaining pairs; no rollback is attempted beyond what
// the store guarantees for a single put or copy call.
func (d *Dispatcher) Copy(ctx context.Context, planned []*planner.PlannedFile) error {
	for i := 1; i < len(planned); i++ {
		if err := d.copyPair(ctx, planned, i); err != nil {
			return errors.NewError("copy", errors.ErrCopyFailed).
				WithEndpoint(planned[i].Store.Endpoint().Name).
				WithKey(planned[i].Key).
				WithMessage(err.Error())
		}
	}
	return nil
}

func (d *Dispatcher) copyPair(ctx context.Context, planned []*planner.PlannedFile, i int) error {
	a, b := planned[i-1], planned[i]
	log := d.log.WithFields(logrus.Fields{
		"source":      a.Store.Endpoint().Name,
		"source_key":  a.Key,
		"destination": b.Store.Endpoint().Name,
		"dest_key":    b.Key,
	})

	if a.Store.Endpoint().Equal(b.Store.Endpoint()) {
		log.Info("Copying within the same store")
		return a.Store.ServerCopy(ctx, a.Key, b.Store, b.Key)
	}

	if a.Options().Equal(b.Options()) {
		log.Info("Matching options, streaming bytes one to one")
		return d.stream(ctx, a, b, false)
	}

	log.Info("Options differ, streaming from the absolute source")
	return d.stream(ctx, planned[0], b, true)
}

// stream opens src and writes it into dst. With transform set, the
// destination's options are applied to the read side; otherwise the raw
// bytes are copied one to one.
func (d *Dispatcher) stream(ctx context.Context, src, dst *planner.PlannedFile, transform bool) error {
	var opts objstore.Options
	if transform {
		opts = dst.Options()
	}

	reader, err := src.Store.Open(ctx, src.Key, opts)
	if err != nil {
		return err
	}
	defer reader.Close()

	return dst.Store.Upload(ctx, dst.Key, reader)
}
