// Package memory provides an in-process duplex link satisfying the
// site.Transport shape, used for tests and for composing two sites
// within a single process without a real network hop.
package memory

import "echo/site"

// Link returns two site.Transport values whose Outbound/Inbound are
// cross-wired: writes to one side's Outbound arrive on the other side's
// Inbound, and vice versa. bufferSize sizes both internal channels.
func Link(bufferSize int) (a, b site.Transport) {
	atob := make(chan []byte, bufferSize)
	btoa := make(chan []byte, bufferSize)
	return site.Transport{Inbound: btoa, Outbound: atob}, site.Transport{Inbound: atob, Outbound: btoa}
}
