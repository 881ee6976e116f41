// Package config loads application configuration from ANDROMEDA_* environment
// variables with sane defaults and upfront validation. Both binaries load a
// .env file first (via godotenv) so local development mirrors deployment.
package config
