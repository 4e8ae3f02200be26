// Package resilience provides retry with exponential backoff for durable
// writes and a bulkhead that caps concurrent background work.
package resilience
