// Package vesting locks an amount of native units for a beneficiary until a
// release height.
//
// Entry points: init(beneficiary_ptr, release_height, amount), release(),
// is_released(), get_release_height(), get_amount(), blocks_until_release().
package vesting

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/native"
)

// Name is the program name used to deploy a vesting schedule.
const Name = "vesting"

// EventTokensReleased is the event name emitted by a successful release.
const EventTokensReleased = "TokensReleased"

const (
	keyBeneficiary   = "beneficiary"
	keyReleaseHeight = "release_height"
	keyAmount        = "amount"
	keyReleased      = "released"
)

// Program is the vesting program.
var Program = &native.Program{
	Name: Name,
	Entries: map[string]native.Entry{
		"init":                 {Arity: 3, Fn: initialize},
		"release":              {Arity: 0, Fn: release},
		"is_released":          {Arity: 0, Fn: isReleased},
		"get_release_height":   {Arity: 0, Fn: getReleaseHeight},
		"get_amount":           {Arity: 0, Fn: getAmount},
		"blocks_until_release": {Arity: 0, Fn: blocksUntilRelease},
	},
}

func init() {
	native.MustRegister(Program)
}

// Released is the payload of a TokensReleased event.
type Released struct {
	Event       string       `json:"event"`
	Beneficiary core.Address `json:"beneficiary"`
	Amount      uint64       `json:"amount"`
	Height      uint64       `json:"height"`
}

type schedule struct {
	beneficiary   core.Address
	initialized   bool
	releaseHeight uint64
	amount        uint64
	released      bool
}

func load(c *native.Context) (*schedule, error) {
	var (
		s   schedule
		err error
	)
	if s.beneficiary, s.initialized, err = c.LoadAddress(keyBeneficiary); err != nil {
		return nil, err
	}
	if s.releaseHeight, err = c.LoadUint64(keyReleaseHeight); err != nil {
		return nil, err
	}
	if s.amount, err = c.LoadUint64(keyAmount); err != nil {
		return nil, err
	}
	if s.released, err = c.LoadBool(keyReleased); err != nil {
		return nil, err
	}
	return &s, nil
}

func initialize(c *native.Context, args []uint64) (uint64, error) {
	beneficiary, err := c.ReadAddressArg(args[0])
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
	if beneficiary.IsZero() {
		c.Logger.Debug("init rejected", zap.Error(core.ErrInvalidAddress))
		return core.StatusFailure, nil
	}

	if err := c.StoreAddress(keyBeneficiary, beneficiary); err != nil {
		return 0, err
	}
	if err := c.StoreUint64(keyReleaseHeight, args[1]); err != nil {
		return 0, err
	}
	if err := c.StoreUint64(keyAmount, args[2]); err != nil {
		return 0, err
	}
	if err := c.StoreBool(keyReleased, false); err != nil {
		return 0, err
	}
	return core.StatusSuccess, nil
}

func release(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	height := c.BlockHeight()
	switch {
	case !s.initialized:
		c.Logger.Debug("release rejected: schedule not initialized")
		return core.StatusFailure, nil
	case s.released:
		c.Logger.Debug("release rejected", zap.Error(core.ErrAlreadyReleased))
		return core.StatusFailure, nil
	case height < s.releaseHeight:
		c.Logger.Debug("release rejected", zap.Error(core.ErrTooEarly),
			zap.Uint64("height", height), zap.Uint64("release_height", s.releaseHeight))
		return core.StatusFailure, nil
	}

	ok, err := c.Transfer(s.beneficiary, s.amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		c.Logger.Debug("release rejected", zap.Error(core.ErrTransferFailed), zap.Uint64("amount", s.amount))
		return core.StatusFailure, nil
	}

	if err := c.StoreBool(keyReleased, true); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(Released{
		Event:       EventTokensReleased,
		Beneficiary: s.beneficiary,
		Amount:      s.amount,
		Height:      height,
	})
	if err != nil {
		return 0, err
	}
	if err := c.EmitEvent(payload); err != nil {
		return 0, err
	}
	return core.StatusSuccess, nil
}

func isReleased(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	return core.Status(s.released), nil
}

func getReleaseHeight(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	return s.releaseHeight, nil
}

func getAmount(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	return s.amount, nil
}

func blocksUntilRelease(c *native.Context, _ []uint64) (uint64, error) {
	s, err := load(c)
	if err != nil {
		return 0, err
	}
	if height := c.BlockHeight(); height < s.releaseHeight {
		return s.releaseHeight - height, nil
	}
	return 0, nil
}
