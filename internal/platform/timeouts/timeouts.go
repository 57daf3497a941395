// Package timeouts defines the timeouts shared by the missions binaries.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 10 * time.Second

// HealthProbe caps a one-shot health probe from the admin CLI.
const HealthProbe = 5 * time.Second
