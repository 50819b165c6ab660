package store

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/botlink/internal/crypto"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// Sealed encrypts each binding's PassUUID before it reaches the wrapped
// backend and decrypts it on the way out.
type Sealed struct {
	next   BindingCache
	sealer *crypto.Sealer
}

// NewSealed wraps next. A nil sealer makes the wrapper transparent.
func NewSealed(next BindingCache, sealer *crypto.Sealer) *Sealed {
	return &Sealed{next: next, sealer: sealer}
}

func (s *Sealed) Save(ctx context.Context, owner string, bindings []protocol.Binding) error {
	out := cloneBindings(bindings)
	for i := range out {
		v, err := s.sealer.Seal(out[i].PassUUID)
		if err != nil {
			return fmt.Errorf("seal bot %d: %w", out[i].BotID, err)
		}
		out[i].PassUUID = v
	}
	return s.next.Save(ctx, owner, out)
}

func (s *Sealed) Load(ctx context.Context, owner string) ([]protocol.Binding, error) {
	in, err := s.next.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := cloneBindings(in)
	for i := range out {
		v, err := s.sealer.Open(out[i].PassUUID)
		if err != nil {
			return nil, fmt.Errorf("open bot %d: %w", out[i].BotID, err)
		}
		out[i].PassUUID = v
	}
	return out, nil
}
