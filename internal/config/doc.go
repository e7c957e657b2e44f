// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package config loads the pipeline configuration.
//
// Sources are layered with koanf, later layers winning:
//
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file, from CONFIG_PATH or the first of DefaultConfigPaths
//  3. environment variables listed in envMappings
//
// Load validates the result; a process should not start on a config that
// fails Validate.
package config
