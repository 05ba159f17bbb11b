package bscript_test

import (
	"strings"
	"testing"

	"github.com/advdv/bscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena(t *testing.T) {
	t.Run("copies strings", func(t *testing.T) {
		arena := bscript.NewArena(-1)

		src := []byte("/target")
		s, err := arena.String(string(src))
		require.NoError(t, err)

		src[0] = 'X'
		assert.Equal(t, "/target", s)
		assert.Equal(t, 7, arena.Used())
	})

	t.Run("strings stay valid after free", func(t *testing.T) {
		arena := bscript.NewArena(-1)
		s, err := arena.String("Location")
		require.NoError(t, err)

		arena.Free()
		_, err = arena.String("overwrite")
		require.NoError(t, err)

		assert.Equal(t, "Location", s)
		assert.Equal(t, 9, arena.Used())
	})

	t.Run("spans blocks", func(t *testing.T) {
		arena := bscript.NewArena(-1)

		var got []string
		for i := range 100 {
			s, err := arena.String(strings.Repeat(string(rune('a'+i%26)), 100))
			require.NoError(t, err)
			got = append(got, s)
		}

		for i, s := range got {
			assert.Equal(t, strings.Repeat(string(rune('a'+i%26)), 100), s)
		}

		big, err := arena.Alloc(10_000)
		require.NoError(t, err)
		assert.Len(t, big, 10_000)
	})

	t.Run("limit", func(t *testing.T) {
		arena := bscript.NewArena(8)

		_, err := arena.String("12345")
		require.NoError(t, err)

		_, err = arena.String("6789")
		require.ErrorIs(t, err, bscript.ErrResource)
		assert.Equal(t, 5, arena.Used())

		_, err = arena.Alloc(-1)
		require.ErrorIs(t, err, bscript.ErrResource)

		empty, err := arena.Alloc(0)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
