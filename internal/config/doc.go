// ABOUTME: Configuration package
// ABOUTME: YAML configuration for the mixbus daemon and broker
// Package config loads and validates mixbus configuration.
//
// Every section has defaults from Default; a YAML file overrides them
// and command-line flags override the file. The broker secret can also
// come from EVENT_SERVER_SECRET.
package config
