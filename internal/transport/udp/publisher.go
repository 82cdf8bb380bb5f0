// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "timegrapher/internal/log"
	"timegrapher/internal/meter"
)

// SnapshotSource provides the latest session progress. *meter.Meter satisfies it.
type SnapshotSource interface {
	Snapshot() (meter.Progress, bool)
}

/*
Packet is the wire format of one progress datagram (BigEndian, 33 bytes).

+-------------------+----------+-------+----------------------------------------+
| Field             | Type     | Bytes | Description                            |
|-------------------|----------|-------|----------------------------------------|
| Sequence          | uint32   | 4     | Monotonically increasing               |
| Timestamp         | int64    | 8     | Nanoseconds since epoch                |
| Phase             | uint8    | 1     | 0 idle, 1 detecting, 2 measuring, 3 fin|
| SecondsRemaining  | uint16   | 2     | Whole seconds left in the session      |
| Ticks             | uint16   | 2     | Ticks accepted so far                  |
| BPH               | uint32   | 4     | Locked standard, 0 until locked        |
| Level             | float32  | 4     | Peak of the last block                 |
| Rate              | float32  | 4     | Seconds per day                        |
| BeatError         | float32  | 4     | Milliseconds                           |
+-------------------+----------+-------+----------------------------------------+
*/
type Packet struct {
	Sequence         uint32
	Timestamp        int64
	Phase            uint8
	SecondsRemaining uint16
	Ticks            uint16
	BPH              uint32
	Level            float32
	Rate             float32
	BeatError        float32
}

// PacketSize is the encoded length of a Packet.
const PacketSize = 33

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if len(data) != PacketSize {
		return p, fmt.Errorf("UDP packet is %d bytes, want %d", len(data), PacketSize)
	}
	err := binary.Read(bytes.NewReader(data), binary.BigEndian, &p)
	return p, err
}

// UDPPublisher periodically reads the meter's latest progress, packs it into a
// Packet and sends it over UDP. Nothing is sent until the first session has
// reported progress.
type UDPPublisher struct {
	sender   *UDPSender
	source   SnapshotSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // Reused for every packet.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 100ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source SnapshotSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: snapshot source cannot be nil")
	}

	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// Calling Stop on a stopped publisher is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// buildAndSendPacket packs the latest snapshot and sends it.
func (p *UDPPublisher) buildAndSendPacket() {
	progress, ok := p.source.Snapshot()
	if !ok {
		return
	}

	p.sequenceNum++
	pkt := Packet{
		Sequence:         p.sequenceNum,
		Timestamp:        time.Now().UnixNano(),
		Phase:            uint8(progress.Phase),
		SecondsRemaining: clampUint16(progress.SecondsRemaining),
		Ticks:            clampUint16(progress.Ticks),
		Level:            float32(progress.Level),
	}
	if s := progress.Stats; s != nil {
		pkt.BPH = uint32(s.BPH)
		pkt.Rate = float32(s.Rate)
		pkt.BeatError = float32(s.BeatError)
	}

	p.packetBuffer.Reset()
	if err := binary.Write(p.packetBuffer, binary.BigEndian, &pkt); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

func clampUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(v)
	}
}

// Close stops the publisher and closes its sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
