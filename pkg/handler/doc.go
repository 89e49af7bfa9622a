// Package handler provides typed HTTP handlers: a request struct is bound
// from the path and JSON body, the handler returns a Response, and every
// failure is rendered as a JSON envelope by one ErrorHandler.
//
//	type navigateRequest struct {
//		TabID string `path:"tab"`
//		URL   string `json:"url"`
//	}
//
//	r.Post("/tabs/{tab}/navigate", handler.Wrap(func(ctx handler.Context, req navigateRequest) handler.Response {
//		return handler.JSON(loc)
//	}, handler.WithBinders(handler.BindPath(chi.URLParam), handler.BindJSON())))
//
// RequestID middleware tags every request with an id that error logs and
// the logger's context extractor pick up.
package handler
