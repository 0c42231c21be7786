// Package config loads the s3gate configuration file and resolves endpoint
// credentials, either inline or from side-channel credential files next to
// the config.
package config
