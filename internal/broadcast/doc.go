// Package broadcast decouples message producers from connection fan-out.
//
// Producers call the typed Facade, which constructs immutable messages and
// hands them to the Scheduler. The Scheduler buffers them and flushes in
// priority order on a 50ms tick, so the connection registry is hit once per
// batch instead of once per produced event.
package broadcast
