package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainPrecedence(t *testing.T) {
	a := namesFrom(map[uint64]string{0x10: "a10"})
	b := namesFrom(map[uint64]string{0x10: "b10", 0x20: "b20"})

	c := Chain(nil, a, b)
	require.Equal(t, "a10", c.NameAt(0x10))
	require.Equal(t, "b20", c.NameAt(0x20))
	require.Equal(t, "", c.NameAt(0x30))
	require.Equal(t, "", Chain().NameAt(0x10))
}

func TestDemangling(t *testing.T) {
	s := Demangling(namesFrom(map[uint64]string{
		0x10: "_Z3foov",
		0x20: "plain_c_symbol",
	}))
	require.Equal(t, "foo()", s.NameAt(0x10))
	require.Equal(t, "plain_c_symbol", s.NameAt(0x20))
	require.Equal(t, "", s.NameAt(0x30))
}

func TestCached(t *testing.T) {
	calls := map[uint64]int{}
	inner := SymbolicatorFunc(func(addr uint64) string {
		calls[addr]++
		if addr == 0x10 {
			return "f"
		}
		return ""
	})

	s, err := Cached(inner, 8)
	require.NoError(t, err)
	for range 3 {
		require.Equal(t, "f", s.NameAt(0x10))
		require.Equal(t, "", s.NameAt(0x20))
	}
	require.Equal(t, 1, calls[0x10])
	require.Equal(t, 1, calls[0x20])

	_, err = Cached(inner, 0)
	require.Error(t, err)
}
