// Package reconciler turns a browser's auth event stream into a single
// authoritative identity per tab.
//
// Each Tab owns a Store (the only mutable session state), a page machine, a
// data loader with its watchdog, a mobile SafetyNet and a Reconciler. Tabs
// of one browser share an authevents.Source and a DedupGuard.
//
// Event handling short-circuits token refreshes, settled tabs and
// duplicates, then resolves the profile in two phases: an optimistic
// placeholder identity is published immediately and the stored profile
// replaces it once the lookup (or default creation) finishes. Every reset
// bumps the store's epoch so completions from before the reset are dropped.
//
//	tab := reconciler.NewTab(id, pageURL, userAgent, env)
//	if _, err := tab.Start(ctx); err != nil {
//		return err
//	}
//	defer tab.Close()
//
// Profile switches call SwitchProfile, which moves the active-profile
// pointer and reloads the tab as a fresh sign-in.
package reconciler
