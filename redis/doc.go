// Package redis provides a go-redis client wrapper and a JSON TypedStore
// implementing provider.ContextStore, so tier and prompt-counter state can
// live in a shared redis instead of the local state database.
package redis
