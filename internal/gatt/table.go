package gatt

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/telebridge/internal/bledb"
)

// Handle identifies a characteristic inside one AttributeTable. Handles are
// handed out at construction time and stay valid for the table's lifetime.
type Handle int

// InvalidHandle is never returned by a table.
const InvalidHandle Handle = -1

// CharacteristicConfig declares one characteristic at table construction.
type CharacteristicConfig struct {
	UUID        string
	Name        string
	Properties  Properties
	Permissions Permissions
	// Capacity is the fixed maximum value length in bytes.
	Capacity int
	// FixedLength requires peer writes to carry exactly Capacity bytes.
	FixedLength bool
	Overflow    OverflowPolicy
	Initial     []byte
}

// Service groups characteristics under one service UUID.
type Service struct {
	UUID    string
	Name    string
	Handles []Handle
}

// CharacteristicInfo is a point-in-time copy of a characteristic for inspection.
type CharacteristicInfo struct {
	Handle      Handle
	ServiceUUID string
	UUID        string
	Name        string
	Properties  Properties
	Permissions Permissions
	Capacity    int
	FixedLength bool
	Overflow    OverflowPolicy
	Gate        GateState
	Value       []byte
}

type characteristic struct {
	cfg     CharacteristicConfig
	service string
	value   []byte
	gate    GateState
}

// Table owns every characteristic buffer and gate of the peripheral. A single
// RW lock serializes peer operations arriving on transport goroutines against
// the sampling loop.
type Table struct {
	mu       sync.RWMutex
	services *orderedmap.OrderedMap[string, *Service]
	chars    []*characteristic
	byUUID   map[string]Handle
}

// TableBuilder assembles a Table. Characteristics can only be added before Build.
type TableBuilder struct {
	table *Table
	built bool
}

// ServiceBuilder adds characteristics to one service.
type ServiceBuilder struct {
	builder *TableBuilder
	service *Service
}

// NewTableBuilder starts an empty table.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{
		table: &Table{
			services: orderedmap.New[string, *Service](),
			byUUID:   make(map[string]Handle),
		},
	}
}

// Service returns the builder for uuid, creating the service on first use.
func (b *TableBuilder) Service(uuid string) *ServiceBuilder {
	if b.built {
		panic("gatt: table already built")
	}
	key := bledb.NormalizeUUID(uuid)
	svc, ok := b.table.services.Get(key)
	if !ok {
		svc = &Service{UUID: key, Name: bledb.LookupService(key)}
		b.table.services.Set(key, svc)
	}
	return &ServiceBuilder{builder: b, service: svc}
}

// Characteristic appends a characteristic and returns its handle. Invalid
// declarations are programming errors and panic.
func (s *ServiceBuilder) Characteristic(cfg CharacteristicConfig) Handle {
	b := s.builder
	if b.built {
		panic("gatt: table already built")
	}
	if cfg.Capacity <= 0 {
		panic(fmt.Sprintf("gatt: characteristic %s: capacity must be > 0", cfg.UUID))
	}
	if len(cfg.Initial) > cfg.Capacity {
		panic(fmt.Sprintf("gatt: characteristic %s: initial value exceeds capacity", cfg.UUID))
	}

	cfg.UUID = bledb.NormalizeUUID(cfg.UUID)
	if _, dup := b.table.byUUID[cfg.UUID]; dup {
		panic(fmt.Sprintf("gatt: characteristic %s declared twice", cfg.UUID))
	}
	if cfg.Name == "" {
		cfg.Name = bledb.LookupCharacteristic(cfg.UUID)
	}

	c := &characteristic{
		cfg:     cfg,
		service: s.service.UUID,
		value:   make([]byte, len(cfg.Initial), cfg.Capacity),
		gate:    GateDisabled,
	}
	copy(c.value, cfg.Initial)
	c.cfg.Initial = nil

	h := Handle(len(b.table.chars))
	b.table.chars = append(b.table.chars, c)
	b.table.byUUID[cfg.UUID] = h
	s.service.Handles = append(s.service.Handles, h)
	return h
}

// Build freezes the table.
func (b *TableBuilder) Build() *Table {
	b.built = true
	return b.table
}

func (t *Table) lookup(h Handle) (*characteristic, error) {
	if h < 0 || int(h) >= len(t.chars) {
		return nil, attrError(ATTInvalidHandle, h, "no such characteristic")
	}
	return t.chars[h], nil
}

// Len returns the number of characteristics.
func (t *Table) Len() int {
	return len(t.chars)
}

// Lookup finds the handle of a characteristic by UUID in any notation.
func (t *Table) Lookup(uuid string) (Handle, bool) {
	h, ok := t.byUUID[bledb.NormalizeUUID(uuid)]
	return h, ok
}

// Capacity returns the fixed capacity of h, or 0 for an unknown handle.
func (t *Table) Capacity(h Handle) int {
	c, err := t.lookup(h)
	if err != nil {
		return 0
	}
	return c.cfg.Capacity
}

// Config returns the declaration of h.
func (t *Table) Config(h Handle) (CharacteristicConfig, bool) {
	c, err := t.lookup(h)
	if err != nil {
		return CharacteristicConfig{}, false
	}
	return c.cfg, true
}

// Read serves a peer read and returns a copy of the current value.
func (t *Table) Read(h Handle) ([]byte, error) {
	c, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Permissions.Has(PermRead) {
		return nil, attrError(ATTReadNotPermitted, h, "%s", c.cfg.UUID)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]byte(nil), c.value...), nil
}

// PeerWrite replaces the value of h on behalf of the peer. The write is
// applied atomically or not at all.
func (t *Table) PeerWrite(h Handle, data []byte) error {
	c, err := t.lookup(h)
	if err != nil {
		return err
	}
	if !c.cfg.Permissions.Has(PermWrite) {
		return attrError(ATTWriteNotPermitted, h, "%s", c.cfg.UUID)
	}
	if c.cfg.FixedLength && len(data) != c.cfg.Capacity {
		return attrError(ATTInvalidAttributeLength, h, "expected %d bytes, got %d", c.cfg.Capacity, len(data))
	}
	if len(data) > c.cfg.Capacity {
		return attrError(ATTInvalidAttributeLength, h, "at most %d bytes, got %d", c.cfg.Capacity, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c.value = append(c.value[:0], data...)
	return nil
}

// Store replaces the value of h on behalf of a local producer and returns the
// number of bytes kept. The gate is never touched.
func (t *Table) Store(h Handle, data []byte) (int, error) {
	c, err := t.lookup(h)
	if err != nil {
		return 0, err
	}
	if len(data) > c.cfg.Capacity {
		if c.cfg.Overflow != OverflowTruncate {
			return 0, fmt.Errorf("%w: handle %d holds %d bytes, got %d", ErrPayloadTooLarge, h, c.cfg.Capacity, len(data))
		}
		data = data[:c.cfg.Capacity]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c.value = append(c.value[:0], data...)
	return len(data), nil
}

// WriteDescriptor applies a peer write to the gate of h and returns the
// resulting state. On error the gate is unchanged.
func (t *Table) WriteDescriptor(h Handle, data []byte) (GateState, error) {
	c, err := t.lookup(h)
	if err != nil {
		return GateDisabled, err
	}
	if !c.cfg.Properties.Has(PropNotify) {
		return GateDisabled, attrError(ATTRequestNotSupported, h, "%s has no client configuration", c.cfg.UUID)
	}

	state, err := ParseGate(data)
	if err != nil {
		return t.Gate(h), fmt.Errorf("handle %d: %w", h, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c.gate = state
	return state, nil
}

// ReadDescriptor returns the 2-byte gate encoding of h.
func (t *Table) ReadDescriptor(h Handle) ([]byte, error) {
	c, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Properties.Has(PropNotify) {
		return nil, attrError(ATTRequestNotSupported, h, "%s has no client configuration", c.cfg.UUID)
	}
	return t.Gate(h).Bytes(), nil
}

// Gate returns the current gate of h. Unknown handles read as disabled.
func (t *Table) Gate(h Handle) GateState {
	c, err := t.lookup(h)
	if err != nil {
		return GateDisabled
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return c.gate
}

// Services returns the services in declaration order.
func (t *Table) Services() []Service {
	out := make([]Service, 0, t.services.Len())
	for pair := t.services.Oldest(); pair != nil; pair = pair.Next() {
		svc := *pair.Value
		svc.Handles = append([]Handle(nil), pair.Value.Handles...)
		out = append(out, svc)
	}
	return out
}

// Characteristics snapshots every characteristic in handle order.
func (t *Table) Characteristics() []CharacteristicInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]CharacteristicInfo, 0, len(t.chars))
	for i, c := range t.chars {
		out = append(out, CharacteristicInfo{
			Handle:      Handle(i),
			ServiceUUID: c.service,
			UUID:        c.cfg.UUID,
			Name:        c.cfg.Name,
			Properties:  c.cfg.Properties,
			Permissions: c.cfg.Permissions,
			Capacity:    c.cfg.Capacity,
			FixedLength: c.cfg.FixedLength,
			Overflow:    c.cfg.Overflow,
			Gate:        c.gate,
			Value:       append([]byte(nil), c.value...),
		})
	}
	return out
}
