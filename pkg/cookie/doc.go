// Package cookie provides the browser-side key/value store used by the
// session coordinator.
//
// Jar is the abstraction the coordinator depends on. MemoryJar keeps one
// browser's cookies in memory and is shared by all tabs of that browser;
// HTTPJar writes HMAC-signed cookies to a response through Manager, which
// accepts any configured secret on read so secrets can be rotated.
//
//	m, err := cookie.NewFromConfig(cfg)
//	jar := m.Jar(w, r)
//	_ = jar.Set("currentView", "dashboard", 30*24*time.Hour)
package cookie
