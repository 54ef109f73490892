// Package config handles configuration loading for the bank assistant client.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every key has a default, so running with no file at all works
// against a backend on localhost.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path given with -config
//  2. Path from BANK_ASSISTANT_CONFIG
//  3. ./bank-assistant.yaml (or .toml)
//  4. $XDG_CONFIG_HOME/bank-assistant/config.yaml (or .toml)
//
// Files ending in .toml are decoded as TOML. Anything else is YAML.
//
// # Environment Variables
//
// A .env file next to the config file is loaded first. Variables already
// set in the process environment are not overridden. Values can then
// reference the environment:
//
//	backend:
//	  base_url: "${BANK_API_URL}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Backend:
//
//	backend:
//	  base_url: "http://localhost:8000/api/"
//	  timeout: "30s"
//	  csrf_cookie: "csrftoken"
//	  csrf_header: "X-CSRFToken"
//
// Storage for the session record and backend cookies:
//
//	storage:
//	  driver: "file"   # file, sqlite, memory
//	  path: ""         # defaults under the user config directory
//
// Admin user directory:
//
//	directory:
//	  cache_ttl: "30s"
//
// Logging:
//
//	logging:
//	  level: "warn"    # debug, info, warn, error
//	  format: "text"   # text, json
//	  file: ""         # rotated log file; stderr when empty
//
// # Usage
//
//	cfg, path, err := config.LoadDefault(*configFlag)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
