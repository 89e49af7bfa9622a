// Package config loads typed configuration from environment variables
// (github.com/caarlos0/env) with optional dotenv files
// (github.com/joho/godotenv). Each package owns its Config struct; Load
// caches the parsed value per type so repeated calls are cheap.
package config
