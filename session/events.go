package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/luhtfiimanal/serialscope/internal/hexfmt"
)

// Status is derived from whether a port handle is held.
type Status string

const (
	StatusClosed Status = "closed"
	StatusOpen   Status = "open"
	// StatusError is part of the model but no transition produces it yet.
	StatusError Status = "error"
)

// Direction tags a packet as received from or sent to the device.
type Direction string

const (
	DirectionRx Direction = "rx"
	DirectionTx Direction = "tx"
)

// Format tags how DataPacket.Data is rendered, and how Manager.SendString
// interprets its input.
type Format string

const (
	FormatHex   Format = "hex"
	FormatASCII Format = "ascii"
)

// DataPacket is one emitted batch of bytes.
type DataPacket struct {
	ID        string    `json:"id"`
	Data      string    `json:"data"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
	Direction Direction `json:"direction"`
	Format    Format    `json:"format"`
}

func newPacket(data string, dir Direction, format Format) DataPacket {
	return DataPacket{
		ID:        uuid.NewString(),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Direction: dir,
		Format:    format,
	}
}

func hexPacket(b []byte, dir Direction) DataPacket {
	return newPacket(hexfmt.Format(b), dir, FormatHex)
}

// Emitter receives session events. Delivery is best-effort; implementations
// must not block for long since EmitData runs on the reader goroutine.
type Emitter interface {
	EmitData(DataPacket)
	EmitStatus(Status)
}

type nopEmitter struct{}

func (nopEmitter) EmitData(DataPacket) {}
func (nopEmitter) EmitStatus(Status)   {}

// ChanEmitter delivers events on buffered channels and drops an event when
// its channel is full.
type ChanEmitter struct {
	Data   chan DataPacket
	Status chan Status
}

func NewChanEmitter(size int) *ChanEmitter {
	return &ChanEmitter{
		Data:   make(chan DataPacket, size),
		Status: make(chan Status, size),
	}
}

func (e *ChanEmitter) EmitData(p DataPacket) {
	select {
	case e.Data <- p:
	default:
	}
}

func (e *ChanEmitter) EmitStatus(s Status) {
	select {
	case e.Status <- s:
	default:
	}
}
