// Package logger builds *slog.Logger instances for raisekit services.
//
// New wraps a text or JSON handler in a LogHandlerDecorator that injects
// attributes pulled from the context (the tab id, for example) on every
// record. Attribute helpers in attr.go keep key names consistent across the
// reconciler, the data loader and the HTTP module; helpers for optional ids
// return an empty attribute for empty input so they can be passed
// unconditionally.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "raisekit"),
//	    logger.WithContextExtractors(coordinator.TabIDExtractor()),
//	)
//	log.InfoContext(ctx, "identity resolved", logger.PrincipalID(id))
package logger
