// Package board defines the motion-control board contract the gateway is
// written against. The physical serial driver lives out of tree and plugs
// in through Driver; this package ships the contract and a simulated
// board for loopback runs and tests.
package board

import "rovergate/pkg/protocol"

// Driver is the external collaborator boundary. ReadState is non-blocking
// and returns the most recent snapshot; ApplyActions is fire-and-forget.
// Implementations must tolerate concurrent ReadState/ApplyActions calls.
type Driver interface {
	ReadState() protocol.State
	ApplyActions(protocol.Actions) error
	Close() error
}
