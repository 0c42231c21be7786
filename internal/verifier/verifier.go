package verifier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/internal/planner"
)

// Result is the tagged outcome of verifying one chain. A failed result is
// not an error: errors are reserved for metadata fetches that could not be
// performed at all.
type Result struct {
	OK     bool
	Reason string
}

// Verified returns a passing result.
func Verified() Result { return Result{OK: true} }

// Unverified returns a failing result with the given reason.
func Unverified(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Verifier compares post-copy metadata across a planned chain.
type Verifier struct {
	log *logrus.Logger
}

// New creates a verifier.
func New(log *logrus.Logger) *Verifier {
	return &Verifier{log: log}
}

// Verify walks the chain pairwise, so the guarantee is transitive
// consistency across the chain rather than pairwise-to-source. A pair with
// differing option sets holds incomparable representations and passes
// trivially; a pair where either fingerprint is not a simple hash falls
// back to size comparison. Both degradations emit a warning.
func (v *Verifier) Verify(ctx context.Context, planned []*planner.PlannedFile) (Result, error) {
	for i := 1; i < len(planned); i++ {
		a, b := planned[i-1], planned[i]
		log := v.log.WithFields(logrus.Fields{
			"a": fmt.Sprintf("%s/%s", a.Store.Endpoint().Name, a.Key),
			"b": fmt.Sprintf("%s/%s", b.Store.Endpoint().Name, b.Key),
		})

		if !a.Options().Equal(b.Options()) {
			log.Warn("Option sets differ, representations are incomparable - verification skipped for pair")
			continue
		}

		aInfo, err := a.Stat(ctx)
		if err != nil {
			return Result{}, err
		}
		bInfo, err := b.Stat(ctx)
		if err != nil {
			return Result{}, err
		}

		aTag, aSimple := aInfo.SimpleETag()
		bTag, bSimple := bInfo.SimpleETag()
		if !aSimple || !bSimple {
			log.Warn("ETag is not a simple hash, falling back to size comparison")
			if aInfo.Size != bInfo.Size {
				return Unverified("size mismatch: %d != %d (%s/%s)",
					aInfo.Size, bInfo.Size, b.Store.Endpoint().Name, b.Key), nil
			}
			continue
		}

		if aTag != bTag {
			return Unverified("etag mismatch: %s != %s (%s/%s)",
				aTag, bTag, b.Store.Endpoint().Name, b.Key), nil
		}
	}

	return Verified(), nil
}
