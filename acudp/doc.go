// Package acudp is a client for the Assetto Corsa remote telemetry feed.
//
// The simulator listens on UDP port 9996. A session is a two step handshake:
// - client sends Connect, server replies with driver/car/track names
// - client sends the operation of desired stream (car telemetry or lap completions)
// after which the server sends one datagram per update until Disconnect.
//
// Every datagram is a fixed size little-endian record, see wire.go.
// Decoded updates are delivered synchronously to registered listeners
// on the transport receive goroutine, one datagram at a time.
//
// Out of scope:
// - shared memory telemetry
// - more than one stream per connection
// - reconnect. Client is single use, create new one after Disconnect.
package acudp
