// Package serializer encodes the common.Message values exchanged between the
// nora RPC client and server.
//
// Every format implements IRPCSerializer:
//
//   - NewBinarySerializer: a compact hand-written format. A bit mask in front of
//     the message marks which fields are set, only those are written. This is the
//     fastest format and the one to use in production.
//
//   - NewJSONSerializer: readable on the wire, handy when debugging a server with
//     curl or tcpdump. Values travel base64 encoded.
//
//   - NewGOBSerializer: encoding/gob. Produces the largest payloads and is kept
//     for comparison in the benchmarks.
//
// Client and server must use the same format, the messages carry no format marker.
// Serializers hold no state and can be shared between goroutines.
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewWatchRequest("/rooms/lobby", hash, 15000))
//	...
//	var resp common.Message
//	err = s.Deserialize(respData, &resp)
package serializer
