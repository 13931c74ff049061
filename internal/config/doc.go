// Package config defines configuration for the seqdl CLI.
//
// Configuration can be provided via:
//   - YAML configuration file (-config)
//   - Environment variables (SEQDL_ prefix)
//   - Command-line flags
//
// Later sources override earlier ones. Part sizes accept human-readable
// values such as "8MiB" or "500KB".
package config
