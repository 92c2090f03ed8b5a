package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogSortedByName(t *testing.T) {
	names := make([]string, 0)
	for _, src := range Catalog() {
		names = append(names, src.Name)
	}
	assert.Equal(t, []string{"Base", "Lisk", "Optimism", "Unichain"}, names)
}

func TestCatalogReturnsCopy(t *testing.T) {
	got := Catalog()
	got[0].Name = "mutated"
	assert.Equal(t, "Base", Catalog()[0].Name)
}

func TestDefaultSelection(t *testing.T) {
	sel := DefaultSelection()
	assert.Equal(t, []string{"Base", "Optimism"}, sel.Names())
	assert.Equal(t, []string{"8453", "10"}, sel.IDs())
}

func TestNewSelectionOrdersAndDedupes(t *testing.T) {
	sel, err := NewSelection([]string{"10", " 1135 ", "8453", "10", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Lisk", "Optimism"}, sel.Names())
	assert.True(t, sel.Contains("1135"))
	assert.False(t, sel.Contains("130"))
}

func TestNewSelectionRejectsUnknown(t *testing.T) {
	_, err := NewSelection([]string{"10", "56"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestEmptySelection(t *testing.T) {
	sel, err := NewSelection(nil)
	require.NoError(t, err)
	assert.True(t, sel.Empty())
	assert.Equal(t, 0, sel.Len())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]string{"130"}))
	assert.ErrorIs(t, Validate([]string{"130", "bogus"}), ErrUnknownSource)
}
