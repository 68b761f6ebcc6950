// Package server assembles the status API: gin middleware, the REST
// handlers, the report stream and the Prometheus endpoint.
package server
