package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

var errFinalized = errors.New("overlay already committed or discarded")

type entry struct {
	value   []byte
	deleted bool
}

// Overlay buffers every mutation of one invocation. Reads see the buffered
// writes on top of the committed backend. Nothing reaches the backend until
// Commit, and Discard drops everything.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	ledger  *Ledger
	writes  map[string]entry
	debits  map[core.Address]uint64
	credits map[core.Address]uint64
	events  []types.Event
	done    bool
}

func newOverlay(l *Ledger) *Overlay {
	return &Overlay{
		ledger:  l,
		writes:  make(map[string]entry),
		debits:  make(map[core.Address]uint64),
		credits: make(map[core.Address]uint64),
	}
}

// Read returns the value at key as seen by this invocation.
func (o *Overlay) Read(key []byte) ([]byte, bool, error) {
	if e, ok := o.writes[string(key)]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return cloneBytes(e.value), true, nil
	}
	return get(o.ledger.kv, key)
}

func (o *Overlay) Write(key, value []byte) {
	o.writes[string(key)] = entry{value: cloneBytes(value)}
}

func (o *Overlay) Delete(key []byte) {
	o.writes[string(key)] = entry{deleted: true}
}

// Balance returns the committed balance of addr adjusted by this
// invocation's pending transfers.
func (o *Overlay) Balance(addr core.Address) (uint64, error) {
	committed, err := o.ledger.Balance(addr)
	if err != nil {
		return 0, err
	}
	bal, carry := bits.Add64(committed, o.credits[addr], 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: balance of %s", core.ErrArithmeticOverflow, addr)
	}
	return bal - o.debits[addr], nil
}

// Transfer buffers a move of amount from one address to another. It reports
// false, without buffering anything, when to is the zero address or from
// cannot cover the amount.
func (o *Overlay) Transfer(from, to core.Address, amount uint64) (bool, error) {
	if to.IsZero() {
		return false, nil
	}
	bal, err := o.Balance(from)
	if err != nil {
		return false, err
	}
	if bal < amount {
		return false, nil
	}
	if amount == 0 {
		return true, nil
	}
	o.debits[from] += amount
	o.credits[to] += amount
	return true, nil
}

// AddEvent queues an event. Its sequence number is assigned at commit.
func (o *Overlay) AddEvent(ev types.Event) {
	ev.Payload = cloneBytes(ev.Payload)
	o.events = append(o.events, ev)
}

// Events returns the queued events.
func (o *Overlay) Events() []types.Event {
	return o.events
}

// Pending reports the number of buffered cell writes and deletes.
func (o *Overlay) Pending() int {
	return len(o.writes)
}

// Commit applies every buffered mutation to the backend in one batch and
// returns the persisted events with their sequence numbers.
func (o *Overlay) Commit() ([]types.Event, error) {
	if o.done {
		return nil, errFinalized
	}
	o.done = true

	l := o.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := &Batch{}
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if e := o.writes[k]; e.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Set([]byte(k), e.value)
		}
	}

	if err := o.applyBalances(batch); err != nil {
		return nil, err
	}
	events, err := o.sequenceEvents(batch)
	if err != nil {
		return nil, err
	}

	if err := l.kv.Apply(batch); err != nil {
		return nil, fmt.Errorf("failed to apply batch: %w", err)
	}
	return events, nil
}

func (o *Overlay) applyBalances(batch *Batch) error {
	touched := make(map[core.Address]struct{}, len(o.debits)+len(o.credits))
	for addr := range o.debits {
		touched[addr] = struct{}{}
	}
	for addr := range o.credits {
		touched[addr] = struct{}{}
	}
	addrs := make([]core.Address, 0, len(touched))
	for addr := range touched {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return string(addrs[i][:]) < string(addrs[j][:]) })

	for _, addr := range addrs {
		committed, err := o.ledger.Balance(addr)
		if err != nil {
			return err
		}
		bal, carry := bits.Add64(committed, o.credits[addr], 0)
		if carry != 0 {
			return fmt.Errorf("%w: balance of %s", core.ErrArithmeticOverflow, addr)
		}
		if bal < o.debits[addr] {
			return fmt.Errorf("%w: %s", core.ErrInsufficientBalance, addr)
		}
		batch.Set(BalanceKey(addr), encodeUint64(bal-o.debits[addr]))
	}
	return nil
}

func (o *Overlay) sequenceEvents(batch *Batch) ([]types.Event, error) {
	if len(o.events) == 0 {
		return nil, nil
	}
	next := make(map[core.Address]uint64)
	out := make([]types.Event, 0, len(o.events))
	for _, ev := range o.events {
		seq, ok := next[ev.Contract]
		if !ok {
			raw, err := o.ledger.kv.Get(EventSeqKey(ev.Contract))
			if err != nil {
				return nil, fmt.Errorf("failed to read event sequence: %w", err)
			}
			seq = decodeUint64(raw)
		}
		ev.Sequence = seq
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		batch.Set(EventKey(ev.Contract, seq), data)
		next[ev.Contract] = seq + 1
		out = append(out, ev)
	}
	for contract, seq := range next {
		batch.Set(EventSeqKey(contract), encodeUint64(seq))
	}
	return out, nil
}

// Discard drops every buffered mutation.
func (o *Overlay) Discard() {
	o.done = true
	o.writes = make(map[string]entry)
	o.debits = make(map[core.Address]uint64)
	o.credits = make(map[core.Address]uint64)
	o.events = nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
