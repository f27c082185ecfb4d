// Package config loads, normalizes, and validates signprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY (optionally sourced from a .env file in the working
// directory). The Config type centralizes every knob the three pipeline
// stages need so the frame, keypoint, and verification directories are
// resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
