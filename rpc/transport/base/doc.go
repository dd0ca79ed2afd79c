// Package base implements the framed request/response protocol shared by the tcp
// and unix transports. The stream specific parts (dialing, listening, socket
// options) are provided by an IClientConnector or IServerConnector.
//
// Every request and response is sent as one frame:
//
//	| database id (8) | request id (8) | length (4) | payload (length) |
//
// All integers are big endian. The server answers with the request id of the
// request, so a connection carries many requests at once and responses may
// arrive in any order. This matters for watches, which are held open by the
// server until the watched value changes or the wait expires.
//
// The client keeps ConnectionsPerEndpoint connections to every endpoint and picks
// them round robin. A single goroutine per connection reads the responses and
// hands them to the waiting requests. If a connection breaks, all requests waiting
// on it fail and the connection is dialed again. Failed requests are retried on
// the next connection with exponential backoff.
//
// The server reads requests into pooled buffers and runs at most WorkersPerConn
// of them concurrently per connection. A pending watch holds a worker, so the
// number of workers also bounds the watches per connection.
package base
