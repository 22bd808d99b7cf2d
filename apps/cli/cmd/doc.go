// Package cmd implements the restcheck CLI commands using Cobra.
//
// Available commands:
//   - send: Send one request and check the response
//   - run: Run YAML scenario files, optionally watching them
//   - validate: Check scenario files without sending requests
//   - list: Display the steps defined in scenario files
//   - query: Evaluate a JMESPath expression over JSON
//   - echo: Start a local echo server with optional stubs
//   - token: Request an OAuth2 access token
//   - history: Browse requests recorded in the history database
//   - init: Create a config file and an example scenario
//   - version: Show restcheck version information
//
// Exit codes: 0 success, 1 failed checks, 2 unparseable scenario,
// 3 configuration error, 4 network error, 64 usage error.
package cmd
