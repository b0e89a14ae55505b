package persist

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
)

// CheckFunc inspects the stored bytes before they are decoded.
type CheckFunc func(data []byte) error

// Persister handles I/O for a specific state type stored under one key.
type Persister[T any] struct {
	store kv.Store
	key   string
	codec Codec
	check CheckFunc
}

// NewPersister creates a persister for key using the provided codec.
func NewPersister[T any](store kv.Store, key string, codec Codec) *Persister[T] {
	return &Persister[T]{
		store: store,
		key:   key,
		codec: codec,
	}
}

// WithCheck installs a check that runs on the stored bytes before decoding.
func (p *Persister[T]) WithCheck(check CheckFunc) *Persister[T] {
	p.check = check

	return p
}

// Key returns the storage key.
func (p *Persister[T]) Key() string {
	return p.key
}

// Codec returns the codec in use.
func (p *Persister[T]) Codec() Codec {
	return p.codec
}

// Save encodes the state produced by buildState and writes it in one Set.
func (p *Persister[T]) Save(ctx context.Context, buildState func() *T) error {
	data, err := Marshal(p.codec, buildState())
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.key, err)
	}

	err = p.store.Set(ctx, p.key, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", p.key, err)
	}

	return nil
}

// Load reads and decodes the stored state and hands it to restoreState.
// A missing key is reported as kv.ErrNotFound.
func (p *Persister[T]) Load(ctx context.Context, restoreState func(*T)) error {
	data, err := p.store.Get(ctx, p.key)
	if err != nil {
		return fmt.Errorf("load %s: %w", p.key, err)
	}

	if p.check != nil {
		err = p.check(data)
		if err != nil {
			return fmt.Errorf("check %s: %w", p.key, err)
		}
	}

	var state T

	err = Unmarshal(p.codec, data, &state)
	if err != nil {
		return fmt.Errorf("decode %s: %w", p.key, err)
	}

	restoreState(&state)

	return nil
}

// Clear removes the stored state.
func (p *Persister[T]) Clear(ctx context.Context) error {
	err := p.store.Delete(ctx, p.key)
	if err != nil {
		return fmt.Errorf("clear %s: %w", p.key, err)
	}

	return nil
}
