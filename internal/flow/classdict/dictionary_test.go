package classdict

import (
	"testing"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/stretchr/testify/require"
)

func gainClass() *ClassDescriptor {
	return &ClassDescriptor{
		Label: "gain",
		VarDescs: []VariableDescriptor{
			{Label: "in", Sfx: ""},
			{Label: "out", Sfx: ""},
			{Label: "k", Sfx: ""},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(gainClass()))

	c, err := d.Lookup("gain")
	require.NoError(t, err)
	require.Equal(t, "gain", c.Label)

	_, ok := c.VarDesc("k", "")
	require.True(t, ok)
}

func TestRegisterDuplicateFails(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(gainClass()))
	err := d.Register(gainClass())
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.Duplicate))
}

func TestLookupMissingFails(t *testing.T) {
	d := New()
	_, err := d.Lookup("nope")
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.EleNotFound))
}

func TestLabelsSorted(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(&ClassDescriptor{Label: "zeta"}))
	require.NoError(t, d.Register(&ClassDescriptor{Label: "alpha"}))
	require.Equal(t, []string{"alpha", "zeta"}, d.Labels())
}
