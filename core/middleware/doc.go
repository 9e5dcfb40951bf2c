// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - auth: API key validation through the X-API-Key header.
//   - rayid: a unique Request ID (RayID) for every incoming request, stored in
//     the context for logger.WithRayID and echoed in the X-Ray-ID header.
//
// These middleware components are registered globally in cmd/start.go.
package middleware
