// Package realtime implements the connection registry, topic subscription
// index, and broadcast publisher using the actor pattern.
//
// A single goroutine owns the connection table and all subscription maps,
// reachable only via a command channel (no mutexes). Per-connection writer
// goroutines own the transport writes, so fan-out is a non-blocking enqueue
// and one slow client never stalls the registry. Delivery is best-effort:
// a failed send disconnects that recipient, nothing is retried.
package realtime
