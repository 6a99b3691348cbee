package limits

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxPacketSize is the largest payload accepted into a queue (4096 bytes).
	// Payloads are copied at enqueue time, so this also bounds per-packet memory.
	MaxPacketSize = 4096

	// MaxUDPPayload is the theoretical UDP payload ceiling over IPv4.
	MaxUDPPayload = 65507

	// FrameDuration is the length of one Opus frame and the default interval
	// between two packets of the same queue.
	FrameDuration = 20 * time.Millisecond

	// DefaultBufferDuration is how much audio a single queue may hold.
	// With FrameDuration this yields a capacity of 20 packets per queue.
	DefaultBufferDuration = 400 * time.Millisecond

	// MaxBufferCapacity caps the number of packets a single queue may hold.
	MaxBufferCapacity = 1 << 16
)

var (
	// ErrPacketEmpty indicates an empty payload was provided
	ErrPacketEmpty = errors.New("empty packet")

	// ErrPacketTooLarge indicates the payload exceeds the maximum size
	ErrPacketTooLarge = errors.New("packet too large")
)

// ValidatePacketSize validates a payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidatePacketSize(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrPacketEmpty
	}
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(payload), maxSize)
	}
	return nil
}

// ValidatePacket validates a payload against MaxPacketSize.
func ValidatePacket(payload []byte) error {
	return ValidatePacketSize(payload, MaxPacketSize)
}

// CapacityForDuration returns how many frames of frameDuration fit in
// bufferDuration. The result is never less than one.
func CapacityForDuration(bufferDuration, frameDuration time.Duration) uint32 {
	if frameDuration <= 0 || bufferDuration < frameDuration {
		return 1
	}
	capacity := bufferDuration / frameDuration
	if capacity > MaxBufferCapacity {
		return MaxBufferCapacity
	}
	return uint32(capacity)
}
