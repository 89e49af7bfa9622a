// Package dataloader fetches the role-scoped data a tab needs once its
// session is established.
//
// Loader.EnsureLoaded is idempotent for non-forced calls. The Watchdog keeps
// forcing loads on a fixed exponential schedule until the tab reports its
// data loaded or the session ends. StartupLocator performs the bounded
// lookup of a startup record that distinguishes "still loading" from the
// explicit "no startup found" dashboard state.
package dataloader
