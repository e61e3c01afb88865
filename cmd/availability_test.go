package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testAvailabilityConfig() *AvailabilityConfig {
	return &AvailabilityConfig{
		ProcessTypes: map[string]string{
			"LOAN":      "Checked out",
			"MISSING":   "Missing",
			"LOST_LOAN": "Lost",
			"ILL":       "At another institution",
		},
		LoanProcessTypes:     []string{"LOAN"},
		UnavailableLibraries: []string{},
		UnavailableLocations: []string{"ambler", "amb_media", "storage"},
		ReserveLocations:     []string{"reserve"},
		BoundJournalPolicy:   "Bound Journal",
	}
}

func TestClassifyInPlaceNotRequestedIsAvailable(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", InPlace: true}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusAvailable, status.Code)
	assert.Equal(t, "Available", status.Label)
}

func TestClassifyTemporarilyUnavailableLocationWinsOverEverything(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "AMBLER", Location: "ambler", InPlace: true, AwaitingReshelving: true}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusTempUnavailable, status.Code)
	assert.Equal(t, "Temporarily unavailable", status.Label)
}

func TestClassifyAwaitingReshelving(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", InPlace: true, AwaitingReshelving: true}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusReshelving, status.Code)
	assert.Equal(t, "Awaiting Reshelving", status.Label)
}

func TestClassifyOnsiteOnly(t *testing.T) {
	cfg := testAvailabilityConfig()

	reserve := Item{Library: "MAIN", Location: "reserve", InPlace: true}
	assert.Equal(t, StatusOnsiteOnly, classifyAvailability(reserve, cfg).Code)

	boundJournal := Item{Library: "MAIN", Location: "stacks", InPlace: true, CirculationPolicy: "Bound Journal"}
	assert.Equal(t, StatusOnsiteOnly, classifyAvailability(boundJournal, cfg).Code)

	nonCirc := Item{Library: "MAIN", Location: "stacks", InPlace: true, NonCirculating: true}
	assert.Equal(t, StatusOnsiteOnly, classifyAvailability(nonCirc, cfg).Code)
}

func TestClassifyLibraryUseOnlyPolicy(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", InPlace: true,
		NonCirculating: true, CirculationPolicy: "Non-circulating"}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusLibraryUseOnly, status.Code)
	assert.Equal(t, "Library Use Only", status.Label)
}

func TestClassifyPendingRequest(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", InPlace: true, Requested: true}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusPendingRequest, status.Code)
	assert.Equal(t, "Available (Pending Request)", status.Label)
}

func TestClassifyLoanWithDueDate(t *testing.T) {
	cfg := testAvailabilityConfig()
	due := time.Date(2026, 9, 15, 4, 0, 0, 0, time.UTC)
	item := Item{Library: "MAIN", Location: "stacks", ProcessType: "LOAN", DueDate: due}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusCheckedOut, status.Code)
	assert.Equal(t, "Checked out, due Sep 15, 2026", status.Label)
	assert.Equal(t, "Sep 15, 2026", status.DueDate)
}

func TestClassifyLoanWithoutDueDate(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", ProcessType: "LOAN"}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, "Checked out", status.Label)
	assert.Empty(t, status.DueDate)
}

func TestClassifyUnknownProcessTypeUsesDefaultLabel(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks", ProcessType: "WORK_ORDER_DEPARTMENT"}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusCheckedOut, status.Code)
	assert.Equal(t, defaultUnavailableText, status.Label)
}

func TestClassifyNoProcessTypeUsesDefaultLabel(t *testing.T) {
	cfg := testAvailabilityConfig()
	item := Item{Library: "MAIN", Location: "stacks"}

	status := classifyAvailability(item, cfg)
	assert.Equal(t, StatusCheckedOut, status.Code)
	assert.Equal(t, defaultUnavailableText, status.Label)
}

// Missing and lost items are filtered before grouping, but the classifier
// must still answer for them when asked directly
func TestClassifyMissingItemDirectly(t *testing.T) {
	cfg := testAvailabilityConfig()

	missing := Item{Library: "MAIN", Location: "stacks", ProcessType: "MISSING"}
	status := classifyAvailability(missing, cfg)
	assert.Equal(t, StatusMissing, status.Code)
	assert.Equal(t, "Missing", status.Label)

	lost := Item{Library: "MAIN", Location: "stacks", ProcessType: "LOST_LOAN"}
	status = classifyAvailability(lost, cfg)
	assert.Equal(t, StatusMissing, status.Code)
	assert.Equal(t, "Lost", status.Label)
}
