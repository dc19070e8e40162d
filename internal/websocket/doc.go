// Package websocket implements the connection registry using the actor pattern.
//
// One goroutine owns the connection map; registration, eviction and fan-out
// arrive as commands. Each connection gets a bounded drop-oldest outbound
// queue drained by its own writer goroutine, so a slow client is isolated
// and eventually evicted instead of blocking the batch flush.
package websocket
