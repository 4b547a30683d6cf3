// Package providers contains dependency injection providers for the grimoire server.
package providers

import "time"

// shutdownTimeout bounds how long graceful shutdown may take per service.
const shutdownTimeout = 10 * time.Second
