// Package webpush delivers one encrypted Web Push message to one
// subscription and reports what the push service answered.
//
// The subscription descriptor is the JSON object the browser produced
// ({"endpoint": ..., "keys": {"p256dh": ..., "auth": ...}}). It is decoded
// here and nowhere else.
package webpush
