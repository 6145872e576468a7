// Package counter is an owned u64 counter.
//
// Entry points: init(owner_ptr), increment(), add(n), decrement(), get(),
// reset(). reset is restricted to the owner recorded by init.
package counter

import (
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/native"
)

// Name is the program name used to deploy the counter.
const Name = "counter"

const (
	keyOwner = "owner"
	keyCount = "count"
)

// Program is the counter program.
var Program = &native.Program{
	Name: Name,
	Entries: map[string]native.Entry{
		"init":      {Arity: 1, Fn: initialize},
		"increment": {Arity: 0, Fn: increment},
		"add":       {Arity: 1, Fn: add},
		"decrement": {Arity: 0, Fn: decrement},
		"get":       {Arity: 0, Fn: get},
		"reset":     {Arity: 0, Fn: reset},
	},
}

func init() {
	native.MustRegister(Program)
}

// counter is the instance state, loaded from storage for each invocation.
type counter struct {
	owner       core.Address
	initialized bool
	count       uint64
}

func load(c *native.Context) (*counter, error) {
	owner, ok, err := c.LoadAddress(keyOwner)
	if err != nil {
		return nil, err
	}
	count, err := c.LoadUint64(keyCount)
	if err != nil {
		return nil, err
	}
	return &counter{owner: owner, initialized: ok, count: count}, nil
}

func (s *counter) saveCount(c *native.Context) error {
	return c.StoreUint64(keyCount, s.count)
}

func initialize(c *native.Context, args []uint64) (uint64, error) {
	owner, err := c.ReadAddressArg(args[0])
	if err != nil {
		return 0, err
	}
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	if s.initialized {
		c.Logger.Debug("init rejected", zap.Error(core.ErrAlreadyInitialized))
		return core.StatusFailure, nil
	}
	if owner.IsZero() {
		c.Logger.Debug("init rejected", zap.Error(core.ErrInvalidAddress))
		return core.StatusFailure, nil
	}
	if err := c.StoreAddress(keyOwner, owner); err != nil {
		return 0, err
	}
	s.count = 0
	if err := s.saveCount(c); err != nil {
		return 0, err
	}
	return core.StatusSuccess, nil
}

func increment(c *native.Context, _ []uint64) (uint64, error) {
	return add(c, []uint64{1})
}

func add(c *native.Context, args []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	sum, carry := bits.Add64(s.count, args[0], 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: counter %d + %d", core.ErrArithmeticOverflow, s.count, args[0])
	}
	s.count = sum
	if err := s.saveCount(c); err != nil {
		return 0, err
	}
	return s.count, nil
}

func decrement(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	if s.count == 0 {
		return 0, nil
	}
	s.count--
	if err := s.saveCount(c); err != nil {
		return 0, err
	}
	return s.count, nil
}

func get(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	return s.count, nil
}

func reset(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	if !s.initialized || c.Caller() != s.owner {
		c.Logger.Debug("reset rejected", zap.Stringer("caller", c.Caller()), zap.Error(core.ErrNotOwner))
		return core.StatusFailure, nil
	}
	s.count = 0
	if err := s.saveCount(c); err != nil {
		return 0, err
	}
	return core.StatusSuccess, nil
}
