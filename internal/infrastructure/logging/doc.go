// Package logging configures fleetd's structured logger on top of
// log/slog.
//
// Every component takes a *Logger (or a small interface it satisfies)
// rather than logging globally, and every entry carries service and
// version attributes plus whatever component tags were added with
// With. Output format, level and destination come from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json for ingestion, text for a dev console
//	  output: "stdout"   # stdout, stderr
//
// main starts with Default() before the config file is read, then
// rebuilds the logger with New once settings are known.
//
// Never log secrets. Session tokens, password hashes and MQTT
// credentials stay out of log fields; log identifiers (username,
// device_id) instead.
package logging
