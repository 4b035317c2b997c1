// Package dispatch fans one message out to every matching subscriber.
//
// A run loads candidates from the store, delivers to each of them with at
// most Options.Concurrency attempts in flight, waits for every attempt to
// finish, then settles outcomes one at a time in arrival order:
//
//   - Delivered: nothing further.
//   - PermanentlyInvalid (404/410): the subscriber is deleted and the
//     deletion committed before the next outcome is settled.
//   - TransientError: the subscriber ID is appended to Report.FailedIDs.
//
// Nothing a single candidate does (transport error, bad descriptor, panic in
// the deliverer) can abort the run. Only invalid requests and a failing
// candidate lookup are returned as errors.
package dispatch
