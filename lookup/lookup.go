package lookup

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/objstore"
)

var timedeltaRe = regexp.MustCompile(
	`^((?P<days>\d+?)d)?((?P<hours>\d+?)h)?((?P<minutes>\d+?)m)?((?P<seconds>\d+?)s)?$`)

// ParseTimedelta parses strings like "1d", "2h30m" or "1d12h" into a
// duration. Units may be omitted but must appear in d, h, m, s order.
func ParseTimedelta(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.NewError("timedelta", errors.ErrMisconfigured).
			WithMessage("empty timedelta")
	}

	m := timedeltaRe.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.NewError("timedelta", errors.ErrMisconfigured).
			WithMessage(fmt.Sprintf("invalid timedelta %q", s))
	}

	var d time.Duration
	matched := false
	for i, name := range timedeltaRe.SubexpNames() {
		if name == "" || m[i] == "" {
			continue
		}
		matched = true
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return 0, errors.NewError("timedelta", errors.ErrMisconfigured).
				WithMessage(fmt.Sprintf("invalid timedelta %q", s))
		}
		switch name {
		case "days":
			d += time.Duration(n) * 24 * time.Hour
		case "hours":
			d += time.Duration(n) * time.Hour
		case "minutes":
			d += time.Duration(n) * time.Minute
		case "seconds":
			d += time.Duration(n) * time.Second
		}
	}
	if !matched {
		return 0, errors.NewError("timedelta", errors.ErrMisconfigured).
			WithMessage(fmt.Sprintf("invalid timedelta %q", s))
	}

	return d, nil
}

// Find lists objects under the source prefix modified within the window
// ending at now; a non-positive window lists everything (backfill). Keys
// in the result are prefix-relative. An empty result is an error: a
// scheduled batch that finds nothing to move indicates a stalled producer.
func Find(ctx context.Context, store *objstore.Store, window time.Duration, now time.Time, log *logrus.Logger) ([]objstore.ObjectInfo, error) {
	var newerThan time.Time
	if window > 0 {
		newerThan = now.Add(-window)
	}
	log.WithFields(logrus.Fields{
		"endpoint":   store.Endpoint().Name,
		"newer_than": newerThan.Format(time.RFC3339),
	}).Info("Looking up recently modified objects")

	infos, err := store.Find(ctx, newerThan)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.NewError("lookup", errors.ErrNoFilesToTransfer).
			WithEndpoint(store.Endpoint().Name)
	}

	log.WithField("count", len(infos)).Info("Lookup finished")
	return infos, nil
}
