// Package logging configures structured slog output for docqa.
//
// Logs go to stderr by default. With a file path configured (or --debug),
// JSON lines are also written to a size-rotated file under ~/.docqa/logs/,
// which `docqa logs` can tail. MCP stdio mode never writes to stdout.
package logging
