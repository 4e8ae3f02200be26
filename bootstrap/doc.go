// Package bootstrap runs a voicememo process: it starts the registered
// components, runs lifecycle hooks and stops everything in reverse order.
//
// Long-lived processes (the control API) use Run, which blocks until
// SIGINT/SIGTERM. One-shot commands (record, import) use RunTask:
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(dbComponent)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return record(ctx)
//	})
package bootstrap
