package node

import (
	"github.com/doismellburning/komondor-go/internal/bonding"
	"github.com/doismellburning/komondor-go/internal/loss"
	"github.com/doismellburning/komondor-go/internal/phy"
)

// FrameType is the frame kind carried on a Notification.
type FrameType int

const (
	FrameRTS FrameType = iota
	FrameCTS
	FrameData
	FrameAck
)

func (f FrameType) String() string {
	switch f {
	case FrameRTS:
		return "RTS"
	case FrameCTS:
		return "CTS"
	case FrameData:
		return "DATA"
	case FrameAck:
		return "ACK"
	default:
		return "unknown"
	}
}

// Notification is what a Node emits on OutStartTx/OutFinishTx: the wire
// format of the port graph's one payload type for the MAC layer. DstID is
// -1 for frames with no single addressee (there are none in this state
// machine, but the field stays meaningful for forwarding).
type Notification struct {
	SrcID       int
	DstID       int
	Type        FrameType
	Channels    bonding.Range
	TxPowerPW   float64
	NAV         float64
	BSSColor    int
	HasBSSColor bool
	SRG         int
	HasSRG      bool
	MCS         phy.MCS
	Seq         uint64
	TxDuration  float64
}

// Nack is addressed back to a frame's source when the Loss Oracle rules
// against the reception at the frame's end. An interfering start during a
// reception only marks it as collided; no Nack is sent until that frame
// finishes.
type Nack struct {
	DstID int
	Seq   uint64
	Cause loss.Cause
}
