// Package config loads, normalizes, and validates cadence configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_ACCESS_TOKEN and CADENCE_API_TOKEN. Matching thresholds live here so
// preview classification and bulk commits read the same values.
package config
