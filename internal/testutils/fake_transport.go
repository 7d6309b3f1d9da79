package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/telebridge/internal/gatt"
)

// Notification is one payload pushed through a FakeTransport.
type Notification struct {
	Handle gatt.Handle
	Data   []byte
}

// FakeTransport is an in-memory gatt.Transport. Tests drive the peer side
// with Connect, Subscribe and Write.
type FakeTransport struct {
	mu            sync.Mutex
	table         *gatt.Table
	adv           gatt.Advertisement
	events        gatt.EventHandler
	notifications []Notification
	notifyErr     error
	started       bool
	closed        bool
}

var _ gatt.Transport = (*FakeTransport)(nil)

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (f *FakeTransport) Start(_ context.Context, table *gatt.Table, adv gatt.Advertisement, events gatt.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return errors.New("fake transport already started")
	}
	f.table, f.adv, f.events, f.started = table, adv, events, true
	return nil
}

func (f *FakeTransport) Notify(h gatt.Handle, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications = append(f.notifications, Notification{Handle: h, Data: append([]byte(nil), data...)})
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FailNotify makes every following Notify return err (nil restores).
func (f *FakeTransport) FailNotify(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyErr = err
}

func (f *FakeTransport) Advertisement() gatt.Advertisement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adv
}

func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Notifications returns everything notified so far.
func (f *FakeTransport) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.notifications...)
}

// NotificationsFor returns the payloads notified for h.
func (f *FakeTransport) NotificationsFor(h gatt.Handle) [][]byte {
	var out [][]byte
	for _, n := range f.Notifications() {
		if n.Handle == h {
			out = append(out, n.Data)
		}
	}
	return out
}

// Reset forgets recorded notifications.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = nil
}

func (f *FakeTransport) handler() gatt.EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		panic("testutils: fake transport not started")
	}
	return f.events
}

// Connect simulates a peer connecting.
func (f *FakeTransport) Connect(peer string) {
	f.handler().OnConnected(peer)
}

// Disconnect simulates a peer going away.
func (f *FakeTransport) Disconnect(peer string) {
	f.handler().OnDisconnected(peer)
}

// Subscribe writes the enable value to the client configuration of h.
func (f *FakeTransport) Subscribe(h gatt.Handle) error {
	return f.handler().OnDescriptorWrite(h, gatt.GateEnabled.Bytes())
}

// Unsubscribe writes the disable value to the client configuration of h.
func (f *FakeTransport) Unsubscribe(h gatt.Handle) error {
	return f.handler().OnDescriptorWrite(h, gatt.GateDisabled.Bytes())
}

// WriteDescriptor writes a raw client configuration value.
func (f *FakeTransport) WriteDescriptor(h gatt.Handle, value []byte) error {
	return f.handler().OnDescriptorWrite(h, value)
}

// Write simulates a peer value write.
func (f *FakeTransport) Write(h gatt.Handle, value []byte) error {
	return f.handler().OnWrite(h, value)
}
