package main

import (
	"log"
	"regexp"
	"sort"
)

// Items with these process types are gone from the shelf and are never shown
// in grouped holdings
var missingOrLostMatcher = regexp.MustCompile(`MISSING|LOST_LOAN|LOST_LOAN_AND_PAID`)

func missingOrLostProcessType(processType string) bool {
	return missingOrLostMatcher.MatchString(processType)
}

// HoldingsConfig carries the grouping/ordering tables: display names,
// pinned library order and the unwanted-location filter
type HoldingsConfig struct {
	Libraries         map[string]string
	Locations         map[string]map[string]string
	PinnedLibraries   []string
	UnwantedLocations *regexp.Regexp
}

// libraryName resolves a library code to its display name. A missing
// configuration entry is a diagnostic, not an error; the raw code is shown
func (cfg *HoldingsConfig) libraryName(code string) string {
	if name, ok := cfg.Libraries[code]; ok {
		return name
	}
	log.Printf("WARN: missing library name configuration for: %s", code)
	return code
}

// locationName resolves a (library, location) pair to its display name,
// falling back to the raw location code
func (cfg *HoldingsConfig) locationName(library string, location string) string {
	if locs, ok := cfg.Locations[library]; ok {
		if name, ok := locs[location]; ok {
			return name
		}
	}
	return location
}

// unwantedItem flags items shelved in administrative or technical-services
// locations, or with no real owning library
func (cfg *HoldingsConfig) unwantedItem(item Item) bool {
	if item.Library == "" || item.Library == "EMPTY" {
		return true
	}
	return cfg.UnwantedLocations != nil && cfg.UnwantedLocations.MatchString(item.Location)
}

// groupHoldings filters, groups and orders items for display. Missing/lost
// items and unwanted locations are dropped; groups are keyed by library then
// location; pinned libraries come first in pin order and the remainder are
// sorted by display name; items within a location are ordered by call number
// then description
func groupHoldings(items []Item, cfg *HoldingsConfig) []LibraryHoldings {
	type locGroup struct {
		code  string
		items []Item
	}
	type libGroup struct {
		code      string
		locOrder  []string
		locations map[string]*locGroup
	}

	libOrder := make([]string, 0)
	libs := make(map[string]*libGroup)

	for _, item := range items {
		if missingOrLostProcessType(item.ProcessType) {
			continue
		}
		if cfg.unwantedItem(item) {
			continue
		}

		lib, ok := libs[item.Library]
		if !ok {
			lib = &libGroup{code: item.Library, locations: make(map[string]*locGroup)}
			libs[item.Library] = lib
			libOrder = append(libOrder, item.Library)
		}
		loc, ok := lib.locations[item.Location]
		if !ok {
			loc = &locGroup{code: item.Location}
			lib.locations[item.Location] = loc
			lib.locOrder = append(lib.locOrder, item.Location)
		}
		loc.items = append(loc.items, item)
	}

	// pinned libraries first, in pin order; everything else alphabetical
	// by display name
	ordered := make([]string, 0, len(libOrder))
	pinned := make(map[string]bool)
	for _, code := range cfg.PinnedLibraries {
		if _, ok := libs[code]; ok {
			ordered = append(ordered, code)
			pinned[code] = true
		}
	}
	rest := make([]string, 0, len(libOrder))
	for _, code := range libOrder {
		if !pinned[code] {
			rest = append(rest, code)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return cfg.libraryName(rest[i]) < cfg.libraryName(rest[j])
	})
	ordered = append(ordered, rest...)

	out := make([]LibraryHoldings, 0, len(ordered))
	for _, libCode := range ordered {
		lib := libs[libCode]
		libOut := LibraryHoldings{Code: libCode, Name: cfg.libraryName(libCode)}
		sort.SliceStable(lib.locOrder, func(i, j int) bool {
			return lib.locOrder[i] < lib.locOrder[j]
		})
		for _, locCode := range lib.locOrder {
			loc := lib.locations[locCode]
			sort.SliceStable(loc.items, func(i, j int) bool {
				ci := sortCallNumber(loc.items[i])
				cj := sortCallNumber(loc.items[j])
				if ci != cj {
					return ci < cj
				}
				return loc.items[i].Description < loc.items[j].Description
			})

			locOut := LocationHoldings{
				Code:      locCode,
				Name:      cfg.locationName(libCode, locCode),
				Summaries: uniqueSummaries(loc.items),
				Items:     make([]ItemAvailability, 0, len(loc.items)),
			}
			for _, item := range loc.items {
				locOut.Items = append(locOut.Items, ItemAvailability{Item: item})
			}
			libOut.Locations = append(libOut.Locations, locOut)
		}
		out = append(out, libOut)
	}
	return out
}

// sortCallNumber prefers the alternate call number over the primary one for
// ordering within a location
func sortCallNumber(item Item) string {
	if item.AltCallNumber != "" {
		return item.AltCallNumber
	}
	return item.CallNumber
}

func uniqueSummaries(items []Item) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, item := range items {
		if item.Summary == "" || seen[item.Summary] {
			continue
		}
		seen[item.Summary] = true
		out = append(out, item.Summary)
	}
	return out
}
