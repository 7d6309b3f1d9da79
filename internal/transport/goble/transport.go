// Package goble exposes a gatt.Table as a BLE peripheral through go-ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/groutine"
)

// Peripheral is the part of ble.Device the transport drives.
type Peripheral interface {
	AddService(svc *ble.Service) error
	AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error
	Stop() error
}

// DeviceFactory creates the local BLE device (can be overridden in tests).
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newDefaultDevice

// peerConn is the part of ble.Conn used to track peers.
type peerConn interface {
	RemoteAddr() ble.Addr
	Disconnected() <-chan struct{}
}

// notifier is the part of ble.Notifier used to push values.
type notifier interface {
	Context() context.Context
	Write(b []byte) (int, error)
}

type subscription struct {
	handle gatt.Handle
	peer   string
	n      notifier
}

// Transport is a gatt.Transport backed by a go-ble peripheral.
type Transport struct {
	logger *logrus.Logger

	mu      sync.Mutex
	dev     Peripheral
	table   *gatt.Table
	events  gatt.EventHandler
	cancel  context.CancelFunc
	group   *groutine.Group
	started bool

	// Keyed by subscriptionKey; notifier goroutines add and remove entries
	// while Notify ranges over them.
	subs  *hashmap.Map[string, *subscription]
	peers *hashmap.Map[string, peerConn]
}

var _ gatt.Transport = (*Transport)(nil)

// New creates an idle transport.
func New(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{
		logger: logger,
		subs:   hashmap.New[string, *subscription](),
		peers:  hashmap.New[string, peerConn](),
	}
}

func subscriptionKey(h gatt.Handle, peer string) string {
	return fmt.Sprintf("%d/%s", h, peer)
}

// Start registers every service of table with the local device and begins
// advertising in the background.
func (t *Transport) Start(ctx context.Context, table *gatt.Table, adv gatt.Advertisement, events gatt.EventHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to open BLE device: %w", err)
	}

	t.table = table
	t.events = events
	for _, svc := range table.Services() {
		bsvc, err := t.buildService(svc)
		if err != nil {
			_ = dev.Stop()
			return err
		}
		if err := dev.AddService(bsvc); err != nil {
			_ = dev.Stop()
			return fmt.Errorf("failed to register service %s: %w", svc.UUID, NormalizeError(err))
		}
		t.logger.WithFields(logrus.Fields{
			"service":         svc.UUID,
			"name":            svc.Name,
			"characteristics": len(svc.Handles),
		}).Debug("Service registered")
	}

	uuids := make([]ble.UUID, 0, len(adv.ServiceUUIDs))
	for _, s := range adv.ServiceUUIDs {
		u, err := ble.Parse(s)
		if err != nil {
			_ = dev.Stop()
			return fmt.Errorf("invalid advertised service %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}

	advCtx, cancel := context.WithCancel(ctx)
	t.dev = dev
	t.cancel = cancel
	t.group = groutine.NewGroup(advCtx)
	t.started = true

	t.group.Go("ble-advertiser", func(ctx context.Context) {
		t.logger.WithField("name", adv.LocalName).Info("Advertising")
		err := dev.AdvertiseNameAndServices(ctx, adv.LocalName, uuids...)
		if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			t.logger.WithError(NormalizeError(err)).Error("Advertising stopped")
		}
	})
	return nil
}

func (t *Transport) buildService(svc gatt.Service) (*ble.Service, error) {
	u, err := ble.Parse(svc.UUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service uuid %q: %w", svc.UUID, err)
	}
	bsvc := ble.NewService(u)

	for _, h := range svc.Handles {
		cfg, _ := t.table.Config(h)
		cu, err := ble.Parse(cfg.UUID)
		if err != nil {
			return nil, fmt.Errorf("invalid characteristic uuid %q: %w", cfg.UUID, err)
		}
		c := bsvc.NewCharacteristic(cu)

		if cfg.Properties.Has(gatt.PropRead) {
			c.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
				data, status := t.handleRead(req.Conn(), h, req.Offset())
				if status != ble.ATTError(gatt.ATTSuccess) {
					rsp.SetStatus(status)
					return
				}
				_, _ = rsp.Write(data)
			}))
		}
		if cfg.Properties.Has(gatt.PropWrite) {
			c.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
				rsp.SetStatus(t.handleWrite(req.Conn(), h, req.Data()))
			}))
		}
		if cfg.Properties.Has(gatt.PropNotify) {
			c.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
				t.handleNotify(req.Conn(), h, n)
			}))
		}
	}
	return bsvc, nil
}

// trackPeer reports a peer the first time one of its requests is seen and
// watches for its disconnection.
func (t *Transport) trackPeer(conn peerConn) string {
	peer := conn.RemoteAddr().String()
	if !t.peers.Insert(peer, conn) {
		return peer
	}
	t.events.OnConnected(peer)

	t.mu.Lock()
	group := t.group
	t.mu.Unlock()
	group.Go("ble-peer-"+peer, func(ctx context.Context) {
		select {
		case <-conn.Disconnected():
		case <-ctx.Done():
			return
		}
		t.peers.Del(peer)
		t.subs.Range(func(key string, sub *subscription) bool {
			if sub.peer == peer {
				t.subs.Del(key)
			}
			return true
		})
		t.events.OnDisconnected(peer)
	})
	return peer
}

func (t *Transport) handleRead(conn peerConn, h gatt.Handle, offset int) ([]byte, ble.ATTError) {
	t.trackPeer(conn)
	data, err := t.table.Read(h)
	if err != nil {
		return nil, ble.ATTError(gatt.CodeOf(err))
	}
	if offset > len(data) {
		return nil, ble.ATTError(gatt.ATTInvalidAttributeLength)
	}
	return data[offset:], ble.ATTError(gatt.ATTSuccess)
}

func (t *Transport) handleWrite(conn peerConn, h gatt.Handle, data []byte) ble.ATTError {
	t.trackPeer(conn)
	return ble.ATTError(gatt.CodeOf(t.events.OnWrite(h, data)))
}

// handleNotify runs for the lifetime of one peer subscription. go-ble owns the
// CCCD itself; the gate is enabled when the subscription starts and disabled
// when the peer unsubscribes. A disconnect leaves the gate alone.
func (t *Transport) handleNotify(conn peerConn, h gatt.Handle, n notifier) {
	peer := t.trackPeer(conn)
	key := subscriptionKey(h, peer)

	if err := t.events.OnDescriptorWrite(h, gatt.GateEnabled.Bytes()); err != nil {
		return
	}
	t.subs.Set(key, &subscription{handle: h, peer: peer, n: n})

	<-n.Context().Done()
	t.subs.Del(key)

	select {
	case <-conn.Disconnected():
		return
	default:
	}
	if t.activeSubscribers(h) == 0 {
		_ = t.events.OnDescriptorWrite(h, gatt.GateDisabled.Bytes())
	}
}

func (t *Transport) activeSubscribers(h gatt.Handle) int {
	n := 0
	t.subs.Range(func(_ string, sub *subscription) bool {
		if sub.handle == h {
			n++
		}
		return true
	})
	return n
}

// Notify writes data to every peer subscribed to h.
func (t *Transport) Notify(h gatt.Handle, data []byte) error {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	var errs []error
	t.subs.Range(func(_ string, sub *subscription) bool {
		if sub.handle != h {
			return true
		}
		if _, err := sub.n.Write(data); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", sub.peer, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// Close stops advertising, waits for background goroutines and releases the
// device.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	cancel, group, dev := t.cancel, t.group, t.dev
	t.mu.Unlock()

	cancel()
	group.Wait()
	if err := dev.Stop(); err != nil {
		return NormalizeError(err)
	}
	return nil
}
