// Package config provides configuration management for staffline.
//
// Configuration is loaded with defaults first, then an optional YAML file,
// then environment variable overrides using the STAFFLINE prefix.
package config
