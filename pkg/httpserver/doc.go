// Package httpserver runs an http.Handler with signal-aware graceful
// shutdown and serves JSON health probes.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	r.Get("/health/live", httpserver.HealthHandler(log, time.Second))
//	r.Get("/health/ready", httpserver.HealthHandler(log, time.Second,
//		httpserver.Probe{Name: "postgres", Check: pg.Healthcheck(pool)},
//	))
//	return srv.Run(ctx, r)
//
// Run and Serve wrap listener failures with ErrStart; Shutdown wraps
// http.Server.Shutdown failures with ErrShutdown.
package httpserver
