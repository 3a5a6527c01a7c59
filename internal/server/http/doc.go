// Package httpserver exposes the log store over HTTP: the /api/logs REST
// surface, a server-sent-events tail and /v1/healthz.
//
// Example:
//
//	srv := httpserver.New(rt, logger)
//	go srv.ListenAndServe(ctx, ":8080")
package httpserver
