// Package config loads YAML configuration with viper, overlays .env files
// through godotenv and environment variables, and provides the ServiceConfig
// block that application configs embed.
package config
