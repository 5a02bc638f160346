// Package config loads playoutd's YAML configuration.
//
// Values are layered: Default, then the file, then PLAYOUT_* environment
// variables. Unknown keys in the file are an error. Secrets such as the
// MQTT password, the InfluxDB token and the JWT secret are best supplied
// through the environment:
//
//	PLAYOUT_JWT_SECRET=... playoutd serve --config /etc/playoutd/config.yaml
//
// Validate reports every problem in one error so an operator can fix a
// broken file in a single pass.
package config
