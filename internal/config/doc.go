// Package config loads sheetsplit configuration.
//
// # Sources
//
// Configuration is assembled in increasing order of precedence:
//
//  1. Default() values
//  2. A YAML file (--config, $SHEETSPLIT_CONFIG, ./sheetsplit.yaml, ./configs/sheetsplit.yaml)
//  3. Environment variables prefixed with SHEETSPLIT_
//
// # Environment Variables
//
//	SHEETSPLIT_SERVER_PORT=8080
//	SHEETSPLIT_LOGGING_LEVEL=debug
//	SHEETSPLIT_PATHS_DATA_DIR=/srv/sheets
//	SHEETSPLIT_PIPELINE_DELIMITER=.
//	SHEETSPLIT_PIPELINE_COUNT_FROM=1
//
// Relative paths are made absolute against the working directory at load time.
package config
