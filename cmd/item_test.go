package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCatalogItem(t *testing.T) {
	raw := json.RawMessage(`{
		"item_pid": "23237957740003811",
		"current_library": "MAIN",
		"current_location": "stacks",
		"permanent_library": "AMBLER",
		"permanent_location": "ambler",
		"call_number": "QA76.73.G63",
		"description": "vol.2",
		"process_type": "LOAN",
		"due_date": "2026-09-15T04:00:00Z",
		"holding_id": "22237957750003811",
		"in_place": false,
		"requested": false
	}`)

	item, err := normalizeCatalogItem(raw)
	require.NoError(t, err)
	assert.Equal(t, "23237957740003811", item.PID)
	assert.Equal(t, "MAIN", item.Library, "current library wins over permanent")
	assert.Equal(t, "stacks", item.Location)
	assert.Equal(t, "QA76.73.G63", item.CallNumber)
	assert.Equal(t, "LOAN", item.ProcessType)
	assert.Equal(t, "vol.2", item.Description)
	assert.Equal(t, "22237957750003811", item.HoldingID)
	assert.False(t, item.InPlace)
	assert.Equal(t, time.Date(2026, 9, 15, 4, 0, 0, 0, time.UTC), item.DueDate)
}

func TestNormalizeCatalogItemFallsBackToPermanentLocation(t *testing.T) {
	raw := json.RawMessage(`{
		"permanent_library": "AMBLER",
		"permanent_location": "ambler",
		"call_number": "PS3.A1"
	}`)

	item, err := normalizeCatalogItem(raw)
	require.NoError(t, err)
	assert.Equal(t, "AMBLER", item.Library)
	assert.Equal(t, "ambler", item.Location)
}

func TestNormalizeCatalogItemPrefersTempCallNumber(t *testing.T) {
	raw := json.RawMessage(`{
		"permanent_library": "MAIN",
		"permanent_location": "stacks",
		"call_number": "QA1",
		"temp_call_number": "QA1.TEMP"
	}`)

	item, err := normalizeCatalogItem(raw)
	require.NoError(t, err)
	assert.Equal(t, "QA1.TEMP", item.CallNumber)
}

func TestNormalizeCatalogItemMissingOptionalsDefaultEmpty(t *testing.T) {
	item, err := normalizeCatalogItem(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "", item.Library)
	assert.Equal(t, "", item.CallNumber)
	assert.False(t, item.InPlace)
	assert.True(t, item.DueDate.IsZero())
}

func TestNormalizeCatalogItemMalformedRecord(t *testing.T) {
	_, err := normalizeCatalogItem(json.RawMessage(`"not a mapping"`))
	assert.Error(t, err)

	_, err = normalizeCatalogItem(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
}

func TestNormalizeIlsItem(t *testing.T) {
	raw := json.RawMessage(`{
		"item_data": {
			"pid": "23311482450003811",
			"library": {"value": "MAIN", "desc": "Charles Library"},
			"location": {"value": "stacks", "desc": "Stacks"},
			"base_status": {"value": "1", "desc": "Item in place"},
			"policy": {"value": "NONCIRC", "desc": "Non-circulating"},
			"description": "no.14",
			"requested": false
		},
		"holding_data": {
			"holding_id": "22311482460003811",
			"call_number": "ML1.M5",
			"temp_call_number": "",
			"in_temp_location": false
		}
	}`)

	item, err := normalizeIlsItem(raw)
	require.NoError(t, err)
	assert.Equal(t, "23311482450003811", item.PID)
	assert.Equal(t, "MAIN", item.Library)
	assert.Equal(t, "stacks", item.Location)
	assert.Equal(t, "ML1.M5", item.CallNumber)
	assert.True(t, item.InPlace)
	assert.True(t, item.NonCirculating)
	assert.Equal(t, "Non-circulating", item.CirculationPolicy)
}

func TestNormalizeIlsItemTempLocationOverride(t *testing.T) {
	raw := json.RawMessage(`{
		"item_data": {
			"library": {"value": "MAIN"},
			"location": {"value": "stacks"},
			"base_status": {"value": "1"}
		},
		"holding_data": {
			"call_number": "QA1",
			"temp_call_number": "QA1.T",
			"in_temp_location": true,
			"temp_library": {"value": "AMBLER"},
			"temp_location": {"value": "ambler"}
		}
	}`)

	item, err := normalizeIlsItem(raw)
	require.NoError(t, err)
	assert.Equal(t, "AMBLER", item.Library)
	assert.Equal(t, "ambler", item.Location)
	assert.Equal(t, "QA1.T", item.CallNumber)
}

func TestNormalizeIlsItemNotInPlace(t *testing.T) {
	raw := json.RawMessage(`{
		"item_data": {
			"library": {"value": "MAIN"},
			"location": {"value": "stacks"},
			"base_status": {"value": "0"},
			"process_type": {"value": "LOAN", "desc": "Loan"},
			"due_date": "2026-10-01T03:59:00Z"
		},
		"holding_data": {"call_number": "QA1"}
	}`)

	item, err := normalizeIlsItem(raw)
	require.NoError(t, err)
	assert.False(t, item.InPlace)
	assert.Equal(t, "LOAN", item.ProcessType)
	assert.False(t, item.DueDate.IsZero())
}

func TestNormalizeItemShapeDetection(t *testing.T) {
	nested := json.RawMessage(`{"item_data": {"library": {"value": "MAIN"}}, "holding_data": {"call_number": "QA1"}}`)
	item, err := normalizeItem(nested)
	require.NoError(t, err)
	assert.Equal(t, "MAIN", item.Library)

	flat := json.RawMessage(`{"permanent_library": "LAW", "call_number": "KF1"}`)
	item, err = normalizeItem(flat)
	require.NoError(t, err)
	assert.Equal(t, "LAW", item.Library)

	_, err = normalizeItem(json.RawMessage(`42`))
	assert.Error(t, err)
}
