// Package logging builds the slog logger shared by playoutd components.
//
// Every record carries service and version attributes. Components narrow
// the logger with Component so a take can be followed from the HTTP
// request through the job runner to the studio bridge:
//
//	log := logging.New(cfg.Logging, version)
//	locks := lock.NewManager()
//	locks.SetLogger(log.Component("lock"))
//
// Attributes whose key mentions a password, secret, token or authorization
// header are replaced with [REDACTED] before they reach the handler.
package logging
