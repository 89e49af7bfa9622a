// Package coordinator hosts the per-tab session coordinators behind an HTTP
// API. A browser is identified by a signed cookie; all of its tabs share one
// auth event hub and one set of dedup cookies, while each tab owns its own
// reconciler, page machine, loader and safety net.
//
// Routes:
//
//	POST   /auth/events                 publish a provider event to the browser
//	POST   /tabs                        open a tab for a page load
//	GET    /tabs/{tab}                  tab state and history
//	DELETE /tabs/{tab}                  close a tab
//	POST   /tabs/{tab}/navigate         browser back/forward
//	POST   /tabs/{tab}/transitions      fire a UI trigger
//	POST   /tabs/{tab}/view             switch the dashboard view
//	GET    /tabs/{tab}/profiles         profiles available for switching
//	POST   /tabs/{tab}/profiles/active  switch profile and reload the tab
//	*      /tabs/{tab}/debug/...        debug controller, when enabled
//
// Provider events carry the provider's access token as a Bearer token; the
// session fanned out to tabs is read from its verified claims.
package coordinator
