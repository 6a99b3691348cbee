// Package limits provides centralized packet size constants and validation
// functions for the UDP queue. This package ensures consistent size
// enforcement across producers and the queue manager.
//
// # Size Hierarchy
//
//   - MaxPacketSize (4096 bytes): The largest payload a queue accepts. Voice
//     packets are far smaller, this bound only protects against runaway
//     producers.
//
//   - MaxUDPPayload (65507 bytes): The protocol ceiling for a single UDP
//     datagram over IPv4. Custom limits passed to ValidatePacketSize should
//     stay below it.
//
// # Pacing Constants
//
// FrameDuration (20ms) and DefaultBufferDuration (400ms) determine the
// default queue geometry: each queue holds 400ms of audio, or 20 packets, and
// emits one packet per 20ms tick.
//
//	capacity := limits.CapacityForDuration(400*time.Millisecond, limits.FrameDuration)
//	// capacity == 20
//
// # Validation Functions
//
//	err := limits.ValidatePacket(payload)
//	if errors.Is(err, limits.ErrPacketTooLarge) {
//	    // drop or split the payload
//	}
//
// # Error Types
//
//   - ErrPacketEmpty: Returned when an empty or nil payload is provided
//   - ErrPacketTooLarge: Returned when a payload exceeds the specified limit
package limits
