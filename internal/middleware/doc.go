// Package middleware provides HTTP middleware for the media index service.
//
// It includes:
//   - Request logging in W3C Extended Log Format through package logging
//   - Prometheus request metrics labelled by route template
package middleware
