package s3gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/keytmpl"
)

// Transfer states, logged as each key moves through its lifecycle.
const (
	statePending   = "pending"
	statePlanning  = "planning"
	stateCopying   = "copying"
	stateVerifying = "verifying"
	stateSucceeded = "succeeded"
	stateFailed    = "failed"
)

// Transfer moves every key from the source to all destinations. Keys are
// source-prefix-relative. All keys in the batch share one frozen set of
// time attributes, taken from the clock once at batch start.
//
// Keys transfer independently: a failed key does not stop the others.
// After the batch, failures are returned aggregated under
// ErrSomeTransfersFailed. An empty key list returns ErrNoFilesToTransfer.
func (e *Engine) Transfer(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return errors.NewError("transfer", errors.ErrNoFilesToTransfer)
	}

	runID := uuid.NewString()
	attrs := keytmpl.DefaultAttributes(e.clock())
	log := e.log.WithFields(logrus.Fields{
		"run_id": runID,
		"keys":   len(keys),
	})
	log.Info("Starting transfer batch")

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, key := range keys {
		g.Go(func() error {
			if err := e.transferKey(ctx, key, attrs, log); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
			// Failures are collected, not returned, so one key cannot
			// cancel the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		log.WithField("failed", errs.Len()).Error("Transfer batch finished with failures")
		return errors.NewError("transfer", errors.ErrSomeTransfersFailed).
			WithMessage(err.Error())
	}

	log.Info("Transfer batch succeeded")
	return nil
}

// transferKey runs the per-key state machine. The copy and verify steps
// form one retryable unit: a failed verification rolls back to another
// copy attempt until the attempt budget runs out. Permanent errors, such
// as a key that cannot match the source template, skip the retry loop.
func (e *Engine) transferKey(ctx context.Context, key string, attrs keytmpl.Attributes, log *logrus.Entry) error {
	log = log.WithField("key", key)
	log.WithField("state", statePending).Debug("Transfer queued")

	if e.dryRun {
		log.WithField("state", statePlanning).Info("Deriving destination keys")
		planned, err := e.planner.Plan(key, e.stores, attrs)
		if err != nil {
			log.WithField("state", stateFailed).WithError(err).Error("Planning failed")
			return err
		}
		for _, f := range planned[1:] {
			log.WithFields(logrus.Fields{
				"destination": f.Store.Endpoint().Name,
				"dest_key":    f.Key,
			}).Info("Dry run, would copy")
		}
		return nil
	}

	attempt := 0
	operation := func() error {
		attempt++
		alog := log.WithField("attempt", attempt)

		// Re-plan on every attempt so memoized metadata never carries
		// over from a failed one.
		alog.WithField("state", statePlanning).Info("Deriving destination keys")
		planned, err := e.planner.Plan(key, e.stores, attrs)
		if err != nil {
			return backoff.Permanent(err)
		}

		alog.WithField("state", stateCopying).Info("Copying")
		if err := e.dispatcher.Copy(ctx, planned); err != nil {
			if errors.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		alog.WithField("state", stateVerifying).Info("Verifying")
		result, err := e.verifier.Verify(ctx, planned)
		if err != nil {
			return err
		}
		if !result.OK {
			return errors.NewKeyError("verify", e.Source().Endpoint().Name, key,
				errors.ErrVerificationFailed).WithMessage(result.Reason)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(e.newBackOff(), uint64(e.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		log.WithField("state", stateFailed).WithError(err).Error("Transfer failed")
		return fmt.Errorf("transferring %s: %w", key, err)
	}

	log.WithField("state", stateSucceeded).Info("Transfer succeeded")
	return nil
}
