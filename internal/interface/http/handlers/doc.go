// Package handlers contains reusable HTTP building blocks for the API server.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Warn("unhealthy", logger.String("message", status.Message))
//	}
//
// # Session Authentication
//
// SessionAuth guards routes with the Bearer token returned by login. Given a
// path wildcard name it also requires the session user to own the path:
//
//	auth := handlers.NewSessionAuth(sessions, writeErr, "username")
//	mux.Handle("POST /api/v1/users/{username}/xp", auth.Middleware(h))
//
// # Middleware Chains
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
