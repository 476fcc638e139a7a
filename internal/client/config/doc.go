// Package config loads runtime configuration for the gophchat client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: an optional .env file (path overridable with
//     GOPHCHAT_ENV_FILE) loaded with godotenv, then GOPHCHAT_* variables.
//     Variables already set in the process win over the .env file.
//  3. Optional JSON file selected via flags: -c or -config.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-d string   path of the local SQLite database
//	-m string   MongoDB connection URI
//	-n string   MongoDB database name
//	-w string   change source: mongo or redis
//	-s string   object store: s3 or cloudinary
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations accept strings like "24h" or integer nanoseconds:
//
//	{
//	  "mongo_uri": "mongodb://localhost:27017",
//	  "mongo_database": "gophchat",
//	  "change_source": "redis",
//	  "redis_url": "redis://localhost:6379/0",
//	  "object_store": "s3",
//	  "s3": {"bucket": "gophchat", "endpoint": "http://localhost:9000"},
//	  "cleanup_interval": "24h",
//	  "time_zone": "Europe/Riga"
//	}
//
// Primary API
//
//   - type Config                       : all settings
//   - func LoadConfig() (*Config, error): defaults, env, JSON, then flags
//   - func (*Config) LoadDefaults()     : sets defaults
//   - func (*Config) Validate() error   : checks cross-field requirements
package config
