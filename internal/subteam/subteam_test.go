package subteam

import (
	"errors"
	"testing"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestRegistryPrefixesAreUnique(t *testing.T) {
	seen := map[string]string{}
	all := All()
	require.Len(t, all, 8)
	for _, s := range all {
		require.Len(t, s.Prefix, 1)
		if other, dup := seen[s.Prefix]; dup {
			t.Fatalf("prefix %s shared by %s and %s", s.Prefix, other, s.ID)
		}
		seen[s.Prefix] = s.ID
	}
}

func TestLookup(t *testing.T) {
	s, err := Lookup("aerodynamics")
	require.NoError(t, err)
	require.Equal(t, "KB2", s.SerialPrefix())

	_, err = Lookup("suspension")
	require.True(t, errors.Is(err, apperr.ErrInvalidSubteam))
	require.False(t, Valid(""))
	require.True(t, Valid(General))
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0].Name = "changed"
	s, _ := Get(a[0].ID)
	require.Equal(t, "Driver Controls", s.Name)
}
