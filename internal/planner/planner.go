package planner

import (
	"context"

	"github.com/s3gate/s3gate/internal/keytmpl"
	"github.com/s3gate/s3gate/internal/objstore"
)

// PlannedFile is the resolved (store, key) pair computed for one endpoint
// given one source key. Remote metadata is fetched lazily and memoized, so
// a transfer attempt stats each file at most once. Planned files are not
// shared across attempts of the same key; every retry re-plans and
// re-fetches fresh metadata.
type PlannedFile struct {
	Store *objstore.Store
	Key   string

	info *objstore.ObjectInfo
}

// Options returns the option set of the file's endpoint.
func (f *PlannedFile) Options() objstore.Options {
	return f.Store.Endpoint().Options
}

// Stat returns the file's remote metadata, fetching it on first access.
func (f *PlannedFile) Stat(ctx context.Context) (*objstore.ObjectInfo, error) {
	if f.info != nil {
		return f.info, nil
	}
	info, err := f.Store.Stat(ctx, f.Key)
	if err != nil {
		return nil, err
	}
	f.info = info
	return info, nil
}

// Planner computes destination keys for each endpoint.
type Planner struct {
	compiler *keytmpl.Compiler
}

// New creates a planner sharing the engine's template compiler.
func New(compiler *keytmpl.Compiler) *Planner {
	return &Planner{compiler: compiler}
}

// Plan expands sourceKey into one planned file per store, in store order.
// The first entry is always the source itself. A destination without a key
// template mirrors the source key unchanged; otherwise its key is derived
// from the source endpoint's template and the destination's own template
// and options, so every destination repartitions independently.
func (p *Planner) Plan(sourceKey string, stores []*objstore.Store, attrs keytmpl.Attributes) ([]*PlannedFile, error) {
	planned := make([]*PlannedFile, 0, len(stores))
	planned = append(planned, &PlannedFile{Store: stores[0], Key: sourceKey})

	srcTemplate := stores[0].Endpoint().Template
	for _, store := range stores[1:] {
		ep := store.Endpoint()
		if ep.Template == "" {
			planned = append(planned, &PlannedFile{Store: store, Key: sourceKey})
			continue
		}

		key, err := p.compiler.FormatKey(sourceKey, srcTemplate, ep.Template, ep.Options.Unpack(), attrs)
		if err != nil {
			return nil, err
		}
		planned = append(planned, &PlannedFile{Store: store, Key: key})
	}

	return planned, nil
}
