package s3gate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/config"
	"github.com/s3gate/s3gate/internal/dispatcher"
	"github.com/s3gate/s3gate/internal/keytmpl"
	"github.com/s3gate/s3gate/internal/objstore"
	"github.com/s3gate/s3gate/internal/planner"
	"github.com/s3gate/s3gate/internal/s3api"
	"github.com/s3gate/s3gate/internal/verifier"
	"github.com/s3gate/s3gate/lookup"
)

// Engine transfers objects from the configured source to every configured
// destination. It is safe for concurrent use once constructed.
type Engine struct {
	cfg    *config.Config
	stores []*objstore.Store

	planner    *planner.Planner
	dispatcher *dispatcher.Dispatcher
	verifier   *verifier.Verifier

	log         *logrus.Logger
	workers     int
	maxAttempts int
	dryRun      bool

	clock         func() time.Time
	newBackOff    func() backoff.BackOff
	clientFactory func(*objstore.Endpoint) (s3api.S3API, error)
}

// New validates the configuration, builds one store per endpoint and
// returns a ready engine. Endpoint order is preserved: the source store
// comes first, destinations follow in configuration order.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:           cfg,
		log:           logrus.StandardLogger(),
		workers:       cfg.General.Workers,
		maxAttempts:   cfg.General.MaxAttempts,
		clock:         time.Now,
		clientFactory: defaultClientFactory,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Hand-built configs bypass the Load normalization, so clamp here:
	// zero workers would stall the worker pool and a zero attempt budget
	// would underflow the retry count.
	if e.workers < 1 {
		e.workers = 1
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}

	if e.newBackOff == nil {
		initial := time.Duration(0)
		if cfg.General.Backoff != "" {
			d, err := lookup.ParseTimedelta(cfg.General.Backoff)
			if err != nil {
				return nil, err
			}
			initial = d
		}
		e.newBackOff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			if initial > 0 {
				bo.InitialInterval = initial
			}
			return bo
		}
	}

	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}

	e.stores = make([]*objstore.Store, 0, len(endpoints))
	for _, ep := range endpoints {
		api, err := e.clientFactory(ep)
		if err != nil {
			return nil, err
		}
		e.stores = append(e.stores, objstore.New(ep, api, e.log))
	}

	compiler := keytmpl.NewCompiler()
	e.planner = planner.New(compiler)
	e.dispatcher = dispatcher.New(e.log)
	e.verifier = verifier.New(e.log)

	return e, nil
}

// Source returns the source store.
func (e *Engine) Source() *objstore.Store { return e.stores[0] }

// Lookup lists source objects modified within the configured timedelta
// window ending now, returning their prefix-relative keys. With backfill
// set the window is ignored and everything under the prefix is listed.
func (e *Engine) Lookup(ctx context.Context, backfill bool) ([]string, error) {
	window, err := lookup.ParseTimedelta(e.cfg.General.Timedelta)
	if err != nil {
		return nil, err
	}
	if backfill {
		window = 0
	}

	infos, err := lookup.Find(ctx, e.Source(), window, e.clock(), e.log)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return keys, nil
}

func defaultClientFactory(ep *objstore.Endpoint) (s3api.S3API, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			ep.Credentials.AccessKeyID, ep.Credentials.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ep.EndpointURL)
		// Ceph and MinIO style endpoints do not serve virtual-hosted
		// bucket addressing.
		o.UsePathStyle = true
	}), nil
}
