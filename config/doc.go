// Package config loads pacing settings from a YAML file and UDPQUEUE_*
// environment variables.
//
// A file only needs the keys it changes:
//
//	buffer-duration: 200ms
//	pool-size: 4
//	dscp: 46
//	log-level: debug
//
// Durations use Go syntax. Unknown keys are rejected.
package config
