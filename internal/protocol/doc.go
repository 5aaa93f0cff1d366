// Package protocol implements the wire codec of the J-Style 2208A band.
//
// Outbound commands are fixed 16-byte frames: a command code, fourteen
// parameter bytes and a trailing checksum. Inbound notifications start with
// the code of the command they answer; history transfers span several frames
// and end with a short terminator frame. Decode turns each frame into a
// DeviceMessage whose Fields can be merged across fragments and later
// interpreted with DeviceMessage.Payload.
package protocol
