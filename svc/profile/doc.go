// Package profile holds the application persona model, the Store contract
// used by the session reconciler, in-memory and PostgreSQL stores, and the
// Switcher that moves a principal's active-profile pointer.
//
// A principal may own several profiles, one per role. GetProfileForPrincipal
// follows the active pointer and falls back to the oldest profile.
// Completeness is a property of the profile (Profile.Complete) and reaches
// the page machine only as a boolean.
package profile
