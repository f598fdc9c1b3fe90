// Package server runs the admin HTTP API on Gin as a lifecycle component.
//
// Middleware (server/middleware): panic recovery, request ids, CORS, body
// size limits, per-client rate limiting and request logging. Endpoints
// (server/endpoint): /health, /alive, /ready and /info. The job and
// credential routes live in server/admin.
package server
