// Package config loads the agenthealth YAML configuration.
//
// Load starts from Default, overlays the file, applies defaults to anything
// left empty and validates the result. Values may reference the environment
// as ${VAR}; a reference to an unset variable is an error and "$$" escapes a
// literal dollar sign.
package config
