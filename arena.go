package bscript

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

const arenaBlockSize = 4096

// Arena is the memory scope of a single request. Strings that the control operations keep in [ControlState] are
// copied into it so they never depend on the script values they came from. Blocks are not recycled: memory handed out
// stays valid for as long as something references it, also after [Arena.Free].
type Arena struct {
	limit  int
	used   int
	blocks []*[arenaBlockSize]byte
	off    int
}

// NewArena inits an arena that hands out at most limit bytes. A negative limit means no limit.
func NewArena(limit int) *Arena {
	return &Arena{limit: limit, off: arenaBlockSize}
}

// Alloc returns n bytes that live as long as the arena.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Mark(errors.Newf("negative allocation of %d bytes", n), ErrResource)
	}

	if a.limit >= 0 && a.used+n > a.limit {
		return nil, errors.Mark(errors.Newf("allocating %d bytes exceeds the request limit of %d", n, a.limit),
			ErrResource)
	}

	a.used += n
	switch {
	case n == 0:
		return []byte{}, nil
	case n > arenaBlockSize/2:
		return make([]byte, n), nil
	}

	if a.off+n > arenaBlockSize {
		a.blocks = append(a.blocks, new([arenaBlockSize]byte))
		a.off = 0
	}

	block := a.blocks[len(a.blocks)-1]
	buf := block[a.off : a.off+n : a.off+n]
	a.off += n

	return buf, nil
}

// String copies s into the arena.
func (a *Arena) String(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	buf, err := a.Alloc(len(s))
	if err != nil {
		return "", err
	}

	copy(buf, s)

	return unsafe.String(&buf[0], len(buf)), nil
}

// Used returns the number of bytes handed out so far.
func (a *Arena) Used() int { return a.used }

// Free drops the arena's blocks and resets its budget.
func (a *Arena) Free() {
	clear(a.blocks)
	a.blocks, a.used, a.off = a.blocks[:0], 0, arenaBlockSize
}
