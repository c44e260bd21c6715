// Package config provides YAML-based configuration loading and
// per-section validation for every tunable named in the pipeline's
// configuration table, with defaults filled in before validation.
package config
