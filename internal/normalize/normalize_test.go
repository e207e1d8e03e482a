package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_Empty(t *testing.T) {
	assert.Equal(t, "", Text(""))
	assert.Equal(t, "", Text("   "))
}

func TestText_CollapsesAndUppercases(t *testing.T) {
	assert.Equal(t, "ABC 123", Text("  abc   123 "))
	assert.Equal(t, "A B C", Text("a\tb\nc"))
}

func TestSerial_StripsSeparators(t *testing.T) {
	assert.Equal(t, "W0221593", Serial(" w02-21 593 "))
	assert.Equal(t, "250712", Serial("25 07 12"))
	assert.Equal(t, "AB12CD", Serial("ab_12/cd"))
}

func TestModel_KeepsSeparators(t *testing.T) {
	assert.Equal(t, "GRH-024 AHC", Model("grh-024  ahc"))
}

func TestBrand_EmptyIsUnknown(t *testing.T) {
	assert.Equal(t, UnknownBrand, Brand("", nil))
	assert.Equal(t, UnknownBrand, Brand("   ", nil))
}

func TestBrand_FamilyMerge(t *testing.T) {
	assert.Equal(t, "YORK/JCI", Brand("York", nil))
	assert.Equal(t, "YORK/JCI", Brand("johnson controls", nil))
	assert.Equal(t, "CARRIER/ICP", Brand("Bryant", nil))
	assert.Equal(t, "GOODMAN/AMANA/DAIKIN", Brand("Amana", nil))
}

func TestBrand_AliasTableBeforeFamilies(t *testing.T) {
	aliases := map[string]string{
		"JCI":         "York",
		"ACME MAKERS": "ACME",
	}
	// Alias output is itself run through the family table.
	assert.Equal(t, "YORK/JCI", Brand("jci", aliases))
	assert.Equal(t, "ACME", Brand("Acme Makers", aliases))
}

func TestBrand_UnmappedPassesThroughNormalized(t *testing.T) {
	assert.Equal(t, "SOME OTHER CO", Brand("  some   other co ", nil))
}
