// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment using viper.
//
// Environment variables override file values. MEETINGFLOW_PIPELINE_OUTLIER_THRESHOLD
// style names are bound to every plausible nested key, so
// PIPELINE_OUTLIER_THRESHOLD reaches pipeline.outlier_threshold.
package config
