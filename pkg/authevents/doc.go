// Package authevents models the auth provider's session-change stream.
//
// Source is what the session reconciler consumes. Hub is the in-process
// implementation for one browser: it remembers the provider's current
// session and delivers each event, in order, to every subscribed tab.
// RedisBridge carries events between instances over Redis pub/sub so that
// tabs of one browser served by different processes observe the same stream.
// Nothing orders events across browsers.
package authevents
