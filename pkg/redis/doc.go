// Package redis connects to Redis with go-redis and exposes a health probe.
//
// The client backs two coordinator features: the server-side dedup guard
// (svc/reconciler.RedisDedup) and the cross-instance auth event bridge
// (pkg/authevents.RedisBridge).
package redis
