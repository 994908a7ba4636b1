// Package async provides safe background execution for fire-and-forget
// task runs: panic recovery, optional timeout enforcement, and error
// logging. Use SafeGo instead of a bare `go func()`.
package async
