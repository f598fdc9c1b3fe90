// Package bootstrap runs a service's lifecycle: typed configuration,
// component registration, startup and shutdown hooks, and signal handling.
//
//	app, err := bootstrap.NewApp(&cfg)
//	_ = app.RegisterComponent(db)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return a.RegisterComponent(worker.NewComponent(w))
//	})
//	err = app.Run(ctx)
//
// Components start in registration order and stop in reverse order, each
// bounded by its own stop timeout and all of them by the graceful timeout.
package bootstrap
