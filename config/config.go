package config

import (
	"fmt"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"gopkg.in/yaml.v3"

	"github.com/s3gate/s3gate/errors"
	"github.com/s3gate/s3gate/internal/objstore"
)

// Defaults applied when the general section leaves a knob unset.
const (
	DefaultFilename    = "config.yaml"
	DefaultDir         = "/etc/s3gate"
	DefaultTimedelta   = "1d"
	DefaultMaxAttempts = 3
)

// General holds batch-wide tuning and alerting settings.
type General struct {
	// Timedelta is the lookup horizon, e.g. "1d" or "2h30m".
	Timedelta string `yaml:"timedelta"`

	// MaxAttempts bounds the per-key retry loop.
	MaxAttempts int `yaml:"max_attempts"`

	// Backoff is the initial retry backoff interval, e.g. "30s". Empty
	// leaves the retry policy's own default in place.
	Backoff string `yaml:"backoff"`

	// Workers bounds concurrent key transfers. 1 means sequential.
	Workers int `yaml:"workers"`

	// Alert reporting settings, used by the report collaborator.
	AlertsFrom       string `yaml:"alerts_from"`
	AlertsTo         string `yaml:"alerts_to"`
	AlertsSMTPServer string `yaml:"alerts_smtp_server"`
}

// EndpointConfig describes one configured endpoint. Credentials are either
// inline or resolved from a credentials file keyed by endpoint name.
type EndpointConfig struct {
	Name            string            `yaml:"name"`
	AccessKeyID     string            `yaml:"aws_access_key_id"`
	SecretAccessKey string            `yaml:"aws_secret_access_key"`
	BasePath        string            `yaml:"base_path"`
	EndpointURL     string            `yaml:"endpoint_url"`
	KeyTemplate     string            `yaml:"key_template"`
	Options         map[string]string `yaml:"options"`
}

// Config is the parsed configuration file. Destinations are
// order-preserving: destination key derivation and copy chaining are
// positional.
type Config struct {
	General      General          `yaml:"general"`
	Source       *EndpointConfig  `yaml:"source"`
	Destinations []EndpointConfig `yaml:"destinations"`

	dir  string
	fsys fs.Filesystem
}

// Load reads and parses the configuration file from dir. The filesystem is
// injected so tests can run against an in-memory one.
func Load(fsys fs.Filesystem, dir, filename string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if filename == "" {
		filename = DefaultFilename
	}

	path := filepath.Join(dir, filename)
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.NewError("load", errors.ErrMisconfigured).
			WithMessage(fmt.Sprintf("reading %s: %v", path, err))
	}

	cfg := &Config{dir: dir, fsys: fsys}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewError("load", errors.ErrMisconfigured).
			WithMessage(fmt.Sprintf("parsing %s: %v", path, err))
	}

	if cfg.General.Timedelta == "" {
		cfg.General.Timedelta = DefaultTimedelta
	}
	if cfg.General.MaxAttempts <= 0 {
		cfg.General.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.General.Workers <= 0 {
		cfg.General.Workers = 1
	}

	return cfg, nil
}

// Endpoints validates the configuration and builds the ordered endpoint
// list, source first. Exactly one source must be configured.
func (c *Config) Endpoints() ([]*objstore.Endpoint, error) {
	if c.Source == nil {
		return nil, errors.NewError("endpoints", errors.ErrMisconfigured).
			WithMessage("no source endpoint configured")
	}
	for _, d := range c.Destinations {
		if d.Name == objstore.SourceName {
			return nil, errors.NewError("endpoints", errors.ErrMisconfigured).
				WithMessage("more than one source endpoint configured")
		}
		if d.Name == "" {
			return nil, errors.NewError("endpoints", errors.ErrMisconfigured).
				WithMessage("destination endpoint without a name")
		}
	}

	endpoints := make([]*objstore.Endpoint, 0, len(c.Destinations)+1)

	src, err := c.buildEndpoint(*c.Source, objstore.SourceName,
		objstore.DefaultSourceEndpointURL,
		// The source has no generic credentials fallback.
		[]string{credsFilename(objstore.SourceName)})
	if err != nil {
		return nil, err
	}
	endpoints = append(endpoints, src)

	for _, d := range c.Destinations {
		name := "destination." + d.Name
		dst, err := c.buildEndpoint(d, name,
			objstore.DefaultDestinationEndpointURL,
			[]string{credsFilename(name), credsFilename("destination")})
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, dst)
	}

	return endpoints, nil
}

func (c *Config) buildEndpoint(ec EndpointConfig, name, defaultURL string, credsCandidates []string) (*objstore.Endpoint, error) {
	bucket, prefix := objstore.SplitBasePath(ec.BasePath)
	if bucket == "" {
		return nil, errors.NewError("endpoints", errors.ErrMisconfigured).
			WithEndpoint(name).
			WithMessage("base_path must name a bucket")
	}

	creds := objstore.Credentials{
		AccessKeyID:     ec.AccessKeyID,
		SecretAccessKey: ec.SecretAccessKey,
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		resolved, err := c.credentialsFromFile(name, credsCandidates)
		if err != nil {
			return nil, err
		}
		creds = resolved
	}

	endpointURL := ec.EndpointURL
	if endpointURL == "" {
		endpointURL = defaultURL
	}

	opts := make(objstore.Options, len(ec.Options))
	for k, v := range ec.Options {
		opts[k] = v
	}

	return &objstore.Endpoint{
		Name:        name,
		Credentials: creds,
		Bucket:      bucket,
		Prefix:      prefix,
		EndpointURL: endpointURL,
		Template:    ec.KeyTemplate,
		Options:     opts,
	}, nil
}

// credentialsFromFile resolves credentials through the side channel,
// trying each candidate filename in order. Destination candidates fall
// back from the endpoint-specific file to the generic destination file.
func (c *Config) credentialsFromFile(name string, candidates []string) (objstore.Credentials, error) {
	for _, candidate := range candidates {
		path := filepath.Join(c.dir, candidate)
		exists, err := c.fsys.Exists(path)
		if err != nil || !exists {
			continue
		}

		data, err := c.fsys.ReadFile(path)
		if err != nil {
			return objstore.Credentials{}, errors.NewError("credentials", errors.ErrMisconfigured).
				WithEndpoint(name).
				WithMessage(fmt.Sprintf("reading %s: %v", path, err))
		}

		var parsed struct {
			AccessKeyID     string `yaml:"aws_access_key_id"`
			SecretAccessKey string `yaml:"aws_secret_access_key"`
		}
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return objstore.Credentials{}, errors.NewError("credentials", errors.ErrMisconfigured).
				WithEndpoint(name).
				WithMessage(fmt.Sprintf("parsing %s: %v", path, err))
		}
		if parsed.AccessKeyID == "" || parsed.SecretAccessKey == "" {
			return objstore.Credentials{}, errors.NewError("credentials", errors.ErrMisconfigured).
				WithEndpoint(name).
				WithMessage(fmt.Sprintf("%s is missing a key pair", path))
		}

		return objstore.Credentials{
			AccessKeyID:     parsed.AccessKeyID,
			SecretAccessKey: parsed.SecretAccessKey,
		}, nil
	}

	return objstore.Credentials{}, errors.NewError("credentials", errors.ErrMisconfigured).
		WithEndpoint(name).
		WithMessage("no inline credentials and no credentials file found")
}

func credsFilename(name string) string {
	return name + ".creds.yaml"
}
