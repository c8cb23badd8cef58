// Package logger wraps zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, etc.).
//
// Services take a context and pull the logger out of it, so a package name or
// run id attached once shows up on every line logged below that point.
package logger
