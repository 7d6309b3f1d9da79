package gatt

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DispatchStats counts notification outcomes since the dispatcher was created.
type DispatchStats struct {
	Sent            int64
	Suppressed      int64
	Rejected        int64
	TransportErrors int64
}

// PublishResult summarizes one Publish call.
type PublishResult struct {
	Sent       int
	Suppressed int
	Errors     []error
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSuppressed
	outcomeFailed
)

// Dispatcher turns encoded payloads into stored values and gated
// notifications. It is also the EventHandler registered with the transport:
// connection events only decide whether notifying is worthwhile, and peer
// writes are validated against the table.
type Dispatcher struct {
	table     *Table
	transport Transport
	logger    *logrus.Logger
	clock     *Clock

	mu    sync.RWMutex
	peers map[string]struct{}

	sent       atomic.Int64
	suppressed atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

var _ EventHandler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for table that pushes through transport.
func NewDispatcher(table *Table, transport Transport, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		table:     table,
		transport: transport,
		logger:    logger,
		peers:     make(map[string]struct{}),
	}
}

// WithClock routes peer writes to the clock characteristic through c.
func (d *Dispatcher) WithClock(c *Clock) *Dispatcher {
	d.clock = c
	return d
}

// Connected reports whether at least one peer is connected.
func (d *Dispatcher) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers) > 0
}

// Peers returns the connected peers, sorted.
func (d *Dispatcher) Peers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.peers))
	for p := range d.peers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats returns a snapshot of the outcome counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Sent:            d.sent.Load(),
		Suppressed:      d.suppressed.Load(),
		Rejected:        d.rejected.Load(),
		TransportErrors: d.failed.Load(),
	}
}

// Publish stores each payload in its characteristic and notifies it.
// Failures are logged and reported, never escalated.
func (d *Dispatcher) Publish(payloads []Payload) PublishResult {
	var res PublishResult
	for _, p := range payloads {
		n, err := d.table.Store(p.Handle, p.Data)
		if err != nil {
			d.rejected.Add(1)
			d.logger.WithError(err).WithField("handle", p.Handle).Error("Payload rejected")
			res.Errors = append(res.Errors, err)
			continue
		}

		switch o, err := d.notify(p.Handle, p.Data[:n]); o {
		case outcomeSent:
			res.Sent++
		case outcomeSuppressed:
			res.Suppressed++
		default:
			res.Errors = append(res.Errors, err)
		}
	}
	return res
}

// Notify pushes data for h to subscribed peers. It is a no-op while the gate
// is disabled or no peer is connected.
func (d *Dispatcher) Notify(h Handle, data []byte) error {
	_, err := d.notify(h, data)
	return err
}

func (d *Dispatcher) notify(h Handle, data []byte) (outcome, error) {
	cfg, ok := d.table.Config(h)
	if !ok {
		d.rejected.Add(1)
		return outcomeFailed, attrError(ATTInvalidHandle, h, "no such characteristic")
	}
	if len(data) > cfg.Capacity {
		if cfg.Overflow != OverflowTruncate {
			d.rejected.Add(1)
			err := fmt.Errorf("%w: handle %d holds %d bytes, got %d", ErrPayloadTooLarge, h, cfg.Capacity, len(data))
			d.logger.WithError(err).Error("Notification rejected")
			return outcomeFailed, err
		}
		data = data[:cfg.Capacity]
	}

	if d.table.Gate(h) != GateEnabled || !d.Connected() {
		d.suppressed.Add(1)
		return outcomeSuppressed, nil
	}

	if err := d.transport.Notify(h, data); err != nil {
		d.failed.Add(1)
		terr := &TransportError{Handle: h, Err: err}
		d.logger.WithFields(logrus.Fields{
			"handle":         h,
			"characteristic": cfg.Name,
		}).WithError(err).Warn("Notification failed")
		return outcomeFailed, terr
	}

	d.sent.Add(1)
	d.logger.WithFields(logrus.Fields{
		"handle": h,
		"bytes":  len(data),
	}).Debug("Notification sent")
	return outcomeSent, nil
}

// OnConnected records a peer.
func (d *Dispatcher) OnConnected(peer string) {
	d.mu.Lock()
	d.peers[peer] = struct{}{}
	n := len(d.peers)
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{"peer": peer, "peers": n}).Info("Peer connected")
}

// OnDisconnected forgets a peer. Gates are left as they are.
func (d *Dispatcher) OnDisconnected(peer string) {
	d.mu.Lock()
	delete(d.peers, peer)
	n := len(d.peers)
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{"peer": peer, "peers": n}).Info("Peer disconnected")
}

// OnDescriptorWrite applies a client configuration write.
func (d *Dispatcher) OnDescriptorWrite(h Handle, value []byte) error {
	state, err := d.table.WriteDescriptor(h, value)
	fields := logrus.Fields{"handle": h}
	if cfg, ok := d.table.Config(h); ok {
		fields["characteristic"] = cfg.Name
	}
	if err != nil {
		d.logger.WithFields(fields).WithError(err).Warn("Descriptor write rejected")
		return err
	}

	if state == GateEnabled {
		d.logger.WithFields(fields).Info("Notifications enabled")
	} else {
		d.logger.WithFields(fields).Info("Notifications disabled")
	}
	return nil
}

// OnWrite applies a peer value write.
func (d *Dispatcher) OnWrite(h Handle, value []byte) error {
	if d.clock != nil && h == d.clock.Handle() {
		if err := d.clock.Write(value); err != nil {
			d.logger.WithError(err).WithField("bytes", len(value)).Warn("Clock write rejected")
			return err
		}
		t, _ := d.clock.Time()
		d.logger.WithFields(logrus.Fields{
			"epoch": d.clock.Read(),
			"time":  t.Format("2006-01-02 15:04:05 MST"),
		}).Info("Clock set by peer")
		return nil
	}

	if err := d.table.PeerWrite(h, value); err != nil {
		d.logger.WithError(err).WithField("handle", h).Warn("Write rejected")
		return err
	}
	return nil
}
