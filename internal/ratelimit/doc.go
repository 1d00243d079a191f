// Package ratelimit implements the per-(tenant, operation) fixed-window
// limiter on top of counter.Store.
//
// Each window is one counter key. The first INCR of a window (post-increment
// value 1) sets the key's TTL to the window length; later increments never
// touch the TTL, so a busy tenant cannot keep a window alive forever.
//
// Known limitation: windows are fixed, not sliding. A tenant can issue up to
// 2x the limit across a window boundary (limit at the end of one window, limit
// again at the start of the next). Callers that need a strict sliding bound
// must layer a token bucket on top.
package ratelimit
