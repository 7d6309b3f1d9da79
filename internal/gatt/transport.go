package gatt

import "context"

// Payload is one encoded value bound for a characteristic.
type Payload struct {
	Handle Handle
	Data   []byte
}

// EventHandler receives link-layer events. It is registered once with the
// transport; callbacks may arrive on any goroutine.
type EventHandler interface {
	OnConnected(peer string)
	OnDisconnected(peer string)
	// OnDescriptorWrite applies a client configuration write to h.
	OnDescriptorWrite(h Handle, value []byte) error
	// OnWrite applies a peer value write to h.
	OnWrite(h Handle, value []byte) error
}

// Transport is the link-layer collaborator that exposes a Table to peers.
type Transport interface {
	// Start registers the table's services, begins advertising and routes
	// peer events to events. It returns once the transport is serving.
	Start(ctx context.Context, table *Table, adv Advertisement, events EventHandler) error
	// Notify pushes data for h to every subscribed peer.
	Notify(h Handle, data []byte) error
	// Close stops advertising and releases the link layer.
	Close() error
}
