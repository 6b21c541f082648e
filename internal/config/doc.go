// Package config defines the application configuration structure and the
// logic to load it from defaults, environment variables, and command-line
// flags, in increasing order of precedence.
package config
