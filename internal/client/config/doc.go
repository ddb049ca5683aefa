// Package config holds settings for the cutout CLI.
//
// Values are layered: LoadDefaults, then an optional JSON file named by
// -c/-config or CONFIG_FILE. Command-line flags owned by the cobra command
// tree are applied last by the cli package.
//
// Example JSON:
//
//	{
//	  "server_url": "http://localhost:3000",
//	  "database_path": "~/.cutout/cli.db",
//	  "request_timeout": "2m"
//	}
package config
