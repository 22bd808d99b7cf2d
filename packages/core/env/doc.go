// Package env supplies credentials and variables to requests and scenarios.
//
// Credentials come from a Source (the process environment, a .env file or a
// fixed map) and are never written into scenario files. A Resolver
// interpolates {{name}}, {{$KEY}} and {{func()}} placeholders using
// variables, captured values, a Source and built-in functions.
package env
