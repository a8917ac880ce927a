// Package app wires custos together and manages its lifecycle.
//
// The initialization sequence is:
//
//	1. Load configuration (defaults, config file, .env, environment)
//	2. Initialize the logger and OpenTelemetry providers
//	3. Open the analysis store selected by storage.driver
//	4. Create the websocket hub and the services
//	5. Build the chi router with middleware, API routes, /ws and /metrics
//	6. Serve HTTP until the context is cancelled or a signal arrives
//
// Run never calls os.Exit. Shutdown drains in-flight requests, stops the hub,
// closes the store and flushes telemetry, and every error is returned to main.
package app
