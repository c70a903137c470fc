// Package inject provides structs whose methods can be swapped out per test. Every method falls
// back to the embedded implementation when its function field is nil.
package inject

import (
	"context"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/resource"
)

// Board is an injected board.
type Board struct {
	board.Board
	name                resource.Name
	SPIBusFunc          func(host string, cfg board.SPIBusConfig) (board.SPIBus, error)
	GPIOPinByNumberFunc func(pin int) (board.GPIOPin, error)
	CloseFunc           func(ctx context.Context) error
}

// NewBoard returns a new injected board.
func NewBoard(name string) *Board {
	return &Board{name: board.Named(name)}
}

// Name returns the name of the resource.
func (b *Board) Name() resource.Name {
	return b.name
}

// SPIBus calls the injected SPIBus or the real version.
func (b *Board) SPIBus(host string, cfg board.SPIBusConfig) (board.SPIBus, error) {
	if b.SPIBusFunc == nil {
		return b.Board.SPIBus(host, cfg)
	}
	return b.SPIBusFunc(host, cfg)
}

// GPIOPinByNumber calls the injected GPIOPinByNumber or the real version.
func (b *Board) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	if b.GPIOPinByNumberFunc == nil {
		return b.Board.GPIOPinByNumber(pin)
	}
	return b.GPIOPinByNumberFunc(pin)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}

// GPIOPin is an injected GPIO pin.
type GPIOPin struct {
	board.GPIOPin
	SetFunc func(ctx context.Context, high bool) error
	GetFunc func(ctx context.Context) (bool, error)
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high)
	}
	return gp.SetFunc(ctx, high)
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx)
	}
	return gp.GetFunc(ctx)
}
