// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment.
//
// Precedence, lowest first: env-default tags, the YAML file, the
// environment (including values loaded from .env). Command-line flags are
// applied on top by the cli package.
package config
