// Package server provides the local control API used by the UI process.
//
// The server is gin-backed and only ever binds a loopback address. It exposes
// the entitlement state, the upsell prompt engine, the pre-roll buffer,
// read access to saved recordings and background reprocessing:
//
//	GET  /health
//	GET  /version
//	GET  /v1/entitlements
//	POST /v1/entitlements/upgrade
//	GET  /v1/prompts
//	POST /v1/prompts/:kind/evaluate
//	GET  /v1/preroll
//	POST /v1/preroll/arm
//	POST /v1/preroll/disarm
//	GET  /v1/recordings/:handle
//	POST /v1/recordings/:handle/reprocess
//
// Middleware (server/middleware): panic recovery, request IDs, a loopback
// guard, body size limits and request logging.
package server
