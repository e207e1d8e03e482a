package decoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEquipmentTypes_MissingFile(t *testing.T) {
	vocab, err := LoadEquipmentTypes(filepath.Join(t.TempDir(), "EquipmentTypes.csv"))
	require.NoError(t, err)
	assert.Empty(t, vocab)
}

func TestLoadEquipmentTypes_AndCanonicalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EquipmentTypes.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Asset_MechanicalID,Asset_Description\n1,Cooling Condensing Unit\n2,Boiler\n"), 0o644))

	vocab, err := LoadEquipmentTypes(path)
	require.NoError(t, err)
	require.Len(t, vocab, 2)

	assert.Equal(t, "Cooling Condensing Unit", CanonicalEquipmentType("cooling  condensing unit", vocab))
	// Unknown types pass through normalized, not rejected.
	assert.Equal(t, "HEAT PUMP", CanonicalEquipmentType(" heat pump ", vocab))
	assert.Equal(t, "", CanonicalEquipmentType("", vocab))
}
