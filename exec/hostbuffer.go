package exec

import (
	"sync"

	"synnergy-core/types"
)

// HostBuffer is the single-slot staging cell a Runtime uses to return
// values larger than fit in a caller-provided out-pointer (spec §4.6).
// Exactly one Runtime owns each HostBuffer; it is never shared across
// frames, but it is still guarded by a mutex to match the defensive style
// the rest of the per-frame state uses.
type HostBuffer struct {
	mu    sync.Mutex
	value []byte
	full  bool
}

// Stage populates the buffer with value. Fails with HostBufferFull if the
// buffer is already occupied — the caller must drain it with Take first.
func (b *HostBuffer) Stage(value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return types.NewExecutionError(types.ErrHostBufferFull, "host buffer already occupied")
	}
	b.value = value
	b.full = true
	return nil
}

// Take drains and clears the buffer, reporting whether it held a value.
func (b *HostBuffer) Take() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return nil, false
	}
	v := b.value
	b.value = nil
	b.full = false
	return v, true
}

// Peek reports the buffer's length without draining it, used by
// load_named_keys/load_authorization_keys-style calls that report a size
// before the guest issues the matching read_host_buffer.
func (b *HostBuffer) Peek() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return 0, false
	}
	return len(b.value), true
}

// IsEmpty reports whether the buffer currently holds no value.
func (b *HostBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.full
}
