// Package middleware holds the gin middleware in front of the status API:
// CORS, per-client rate limiting, request IDs and request logging.
package middleware
