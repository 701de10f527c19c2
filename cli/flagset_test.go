package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSet_String(t *testing.T) {
	fset := FlagSet{"a": "abc", "b": 123}

	require.Equal(t, "abc", fset.String("a"))
	require.Equal(t, "abc", fset.Path("a"))
	require.Equal(t, "", fset.String("b"))
	require.Equal(t, "", fset.Path("c"))
}

func TestFlagSet_Duration(t *testing.T) {
	fset := FlagSet{"a": time.Second, "b": "abc"}

	require.Equal(t, time.Second, fset.Duration("a"))
	require.Equal(t, time.Duration(0), fset.Duration("b"))
}

func TestFlagSet_Int(t *testing.T) {
	fset := FlagSet{"a": 42, "b": "abc"}

	require.Equal(t, 42, fset.Int("a"))
	require.Equal(t, 0, fset.Int("b"))
}

func TestFlagSet_Bool(t *testing.T) {
	fset := FlagSet{"a": true, "b": "abc"}

	require.True(t, fset.Bool("a"))
	require.False(t, fset.Bool("b"))
}

func TestFlagSet_Float64(t *testing.T) {
	fset := FlagSet{"a": 1.5, "b": 2, "c": "abc"}

	require.Equal(t, 1.5, fset.Float64("a"))
	require.Equal(t, 2.0, fset.Float64("b"))
	require.Equal(t, 0.0, fset.Float64("c"))
}
