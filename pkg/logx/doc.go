// Package logx is pushfan's zerolog wrapper.
//
// A Service owns the sinks (console, JSON file, rate-limited Telegram chat)
// and can be re-applied on config reload; Loggers handed out by it follow
// the swap. Tests use NewJSON or Nop.
package logx
