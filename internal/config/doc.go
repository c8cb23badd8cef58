// Package config builds the run configuration from the process environment
// (optionally seeded from a dotenv or YAML settings file) and loads the YAML
// package registry.
//
// Nothing outside this package reads the environment: the Config value is
// created once and passed to every component.
package config
