package media

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
)

const (
	// OpusPayloadType is the dynamic RTP payload type used for Opus frames.
	OpusPayloadType uint8 = 120

	// OpusClockRate is the RTP clock rate of Opus.
	OpusClockRate = 48000

	// OpusSamplesPerFrame is the timestamp increment of one 20ms Opus frame.
	OpusSamplesPerFrame uint32 = 960
)

// ErrEmptyFrame is returned when packetizing a frame with no data.
var ErrEmptyFrame = errors.New("frame cannot be empty")

// Packetizer wraps encoded frames in RTP headers for one stream.
// It is safe for concurrent use.
type Packetizer struct {
	mu              sync.Mutex
	payloadType     uint8
	ssrc            uint32
	sequenceNumber  uint16
	timestamp       uint32
	samplesPerFrame uint32
}

// PacketizerOption configures a Packetizer.
type PacketizerOption func(*Packetizer)

// WithPayloadType overrides the RTP payload type.
func WithPayloadType(pt uint8) PacketizerOption {
	return func(p *Packetizer) {
		p.payloadType = pt & 0x7f
	}
}

// WithSSRC fixes the stream's synchronization source instead of drawing a
// random one.
func WithSSRC(ssrc uint32) PacketizerOption {
	return func(p *Packetizer) {
		p.ssrc = ssrc
	}
}

// WithFrameDuration sets the timestamp increment for frames of duration d
// at clockRate.
func WithFrameDuration(d time.Duration, clockRate uint32) PacketizerOption {
	return func(p *Packetizer) {
		samples := uint64(d) * uint64(clockRate) / uint64(time.Second)
		if samples > 0 {
			p.samplesPerFrame = uint32(samples)
		}
	}
}

// WithInitialSequence sets the first sequence number.
func WithInitialSequence(seq uint16) PacketizerOption {
	return func(p *Packetizer) {
		p.sequenceNumber = seq
	}
}

// NewPacketizer creates an Opus packetizer with a random SSRC.
func NewPacketizer(opts ...PacketizerOption) (*Packetizer, error) {
	var ssrcBytes [4]byte
	if _, err := rand.Read(ssrcBytes[:]); err != nil {
		return nil, fmt.Errorf("failed to generate SSRC: %w", err)
	}

	p := &Packetizer{
		payloadType:     OpusPayloadType,
		ssrc:            binary.BigEndian.Uint32(ssrcBytes[:]),
		samplesPerFrame: OpusSamplesPerFrame,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Packetize returns frame as a marshalled RTP packet and advances the
// sequence number and timestamp. Both wrap around.
func (p *Packetizer) Packetize(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequenceNumber,
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
		},
		Payload: frame,
	}

	data, err := packet.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
	}

	p.sequenceNumber++
	p.timestamp += p.samplesPerFrame
	return data, nil
}

// SSRC returns the stream's synchronization source.
func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}

// Next returns the sequence number and timestamp the next packet will carry.
func (p *Packetizer) Next() (sequence uint16, timestamp uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequenceNumber, p.timestamp
}
