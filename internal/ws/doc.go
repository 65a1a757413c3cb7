// Package ws implements the WebSocket hub for servicedeck.
//
// Hub manages a set of connected clients and pushes the live fleet overview
// to all of them on a configurable interval (default 10s), and immediately
// when Notify is called (the process calls it when the registry file changes).
//
// New(source, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast loop; it blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// overview immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "overview",
//	  "data":  { /* same schema as GET /api/v1/overview */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/overview by the server.
package ws
