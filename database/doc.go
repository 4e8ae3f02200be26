// Package database provides the sqlite-backed state database used by the
// recording store and the persisted tier/prompt counters.
//
// The DB wrapper opens a GORM connection with retry, bridges GORM query
// logs into the service logger and applies the embedded schema migrations
// through golang-migrate. KVStore exposes a key/value table as a
// provider.ContextStore so the entitlement service and prompt engine can
// persist their state here.
//
//	db, err := database.Open(ctx, database.Config{Path: "voicememo.db"}, log)
//	if err != nil { ... }
//	defer db.Close()
//	tiers := database.NewKVStore[entitlement.State](db)
package database
