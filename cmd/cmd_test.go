package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionAndKeys(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "storefront dev"))

	out.Reset()
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"keys"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "export COOKIE_HASH_KEY=")
	assert.Contains(t, out.String(), "export COOKIE_BLOCK_KEY=")
}

func TestEstimateSelection(t *testing.T) {
	cat := laundry.Catalog{
		Courses:    []laundry.MachineOption{{ID: "std", Price: 4000, Minutes: 40}},
		AddOns:     []laundry.MachineOption{{ID: "soft", Price: 500}},
		DryerTimes: []laundry.MachineOption{{ID: "dry30", Price: 3000, Minutes: 30}},
	}

	sel, est, err := estimateSelection(cat, laundry.ModeWashDry, "std", []string{"soft", "soft"}, "dry30")
	require.NoError(t, err)
	assert.Equal(t, []string{"soft"}, sel.AddOnIDs, "repeated flags select once")
	assert.Equal(t, laundry.Estimate{TotalPrice: 7500, TotalMinutes: 70}, est)

	_, est, err = estimateSelection(cat, laundry.ModeDry, "std", nil, "dry30")
	require.NoError(t, err)
	assert.Equal(t, laundry.Estimate{TotalPrice: 3000, TotalMinutes: 30}, est)

	_, _, err = estimateSelection(cat, laundry.ModeWash, "deluxe", nil, "")
	assert.Error(t, err)
}

func TestPrintCatalog(t *testing.T) {
	var out bytes.Buffer
	printCatalog(&out, laundry.Catalog{Courses: []laundry.MachineOption{{ID: "std", Name: "Standard", Price: 4000, Minutes: 40}}})
	assert.Equal(t, "courses:\n  id=std name=\"Standard\" price=4000 minutes=40\n", out.String())
}
