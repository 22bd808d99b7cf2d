// Package config handles configuration loading and management for restcheck.
//
// It provides functionality for:
//   - Loading configuration from .restcheck.yaml, .restcheck.yml,
//     restcheck.json or .restcheckrc
//   - Default configuration values
//   - Turning transport and logging settings into http client options
//   - Locating credentials in the environment and an optional .env file
package config
