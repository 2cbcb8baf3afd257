// Package logx configures alertbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp)
//   - File output JSON-structured
//   - Runtime level changes on config hot reload
package logx
