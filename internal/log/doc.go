// Package log provides slog handlers that keep secrets and page dumps out
// of the log.
//
// SecureHandler wraps any slog.Handler and, before records reach it:
//   - masks attributes whose key names a credential (cookie, authorization,
//     token, session, password and similar)
//   - masks string values that look like credentials (bearer and basic
//     auth headers, JWTs)
//   - shortens long string values, such as table markup or option labels,
//     to MaxValueLength runes ending in "..."
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Debug("page opened", "cookie", site.Cookie) // cookie=***REDACTED***
package log
