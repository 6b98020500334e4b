package node

import "github.com/doismellburning/komondor-go/internal/loss"

// Counters accumulates one node's aggregate statistics for a run:
// packets sent/delivered, losses broken down by cause, cumulative air time
// spent transmitting, cumulative time spent in NAV, delay from a packet's
// first backoff-expiry attempt to its eventual delivery, and the set of
// sources this node has seen collide with an in-progress reception (its
// hidden-node set).
type Counters struct {
	Sent      int
	Delivered int
	LostBy    map[loss.Cause]int
	NAVTime   float64
	AirTime   float64
	DelaySum  float64
	HiddenSet map[int]bool
}

// AverageDelay returns the mean delivery delay across delivered packets, or
// 0 if none have been delivered yet.
func (c *Counters) AverageDelay() float64 {
	if c.Delivered == 0 {
		return 0
	}
	return c.DelaySum / float64(c.Delivered)
}

func newCounters() *Counters {
	return &Counters{
		LostBy:    make(map[loss.Cause]int),
		HiddenSet: make(map[int]bool),
	}
}

// Lost returns the total number of lost packets across every cause.
func (c *Counters) Lost() int {
	total := 0
	for _, n := range c.LostBy {
		total += n
	}
	return total
}

func (c *Counters) recordLoss(cause loss.Cause) {
	c.LostBy[cause]++
}

func (c *Counters) recordHiddenNode(peerID int) {
	c.HiddenSet[peerID] = true
}

func (c *Counters) recordDelivery(delay float64) {
	c.Delivered++
	c.DelaySum += delay
}
