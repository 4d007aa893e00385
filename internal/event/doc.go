// Package event provides a pub-sub event bus that decouples the monitoring
// engine from its observers.
//
// Workers and the supervisor publish what happened (a scan finished, an item
// was notified or deferred, a pool generation launched or failed) and never
// learn who is listening. The metrics collector and the daemon's log sink
// subscribe.
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - producer.tracked
//   - scan.completed
//   - item.notified, item.deferred
//   - pool.launched, pool.failed
//   - worker.exited
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publisher's goroutine and are isolated from each other's panics.
package event
