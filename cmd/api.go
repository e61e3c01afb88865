package main

import "encoding/json"

// AvailabilityResponse is the grouped availability payload for one catalog
// document
type AvailabilityResponse struct {
	ID       string            `json:"title_id"`
	Display  map[string]string `json:"display"`
	Holdings []LibraryHoldings `json:"holdings"`
}

// LibraryHoldings is one library's slice of a grouped availability response.
// Order is significant: pinned libraries come first, the rest are sorted by
// display name
type LibraryHoldings struct {
	Code      string             `json:"library"`
	Name      string             `json:"library_name"`
	Locations []LocationHoldings `json:"locations"`
}

// LocationHoldings is one location within a library
type LocationHoldings struct {
	Code      string             `json:"location"`
	Name      string             `json:"location_name"`
	Summaries []string           `json:"summaries,omitempty"`
	Items     []ItemAvailability `json:"items"`
}

// ItemAvailability pairs a normalized item with its display status
type ItemAvailability struct {
	Item   Item               `json:"item"`
	Status AvailabilityStatus `json:"status"`
}

// SolrResponse container
type SolrResponse struct {
	Response struct {
		Docs     []SolrDocument `json:"docs,omitempty"`
		NumFound int            `json:"numFound,omitempty"`
	} `json:"response,omitempty"`
}

// SolrDocument contains the fields this service reads from a single catalog
// record
type SolrDocument struct {
	ID               string            `json:"id,omitempty"`
	Title            []string          `json:"title_statement_display,omitempty"`
	ItemsJSONDisplay []json.RawMessage `json:"items_json_display,omitempty"`
}

// ilsItemList is the envelope the ILS items API wraps item records in
type ilsItemList struct {
	TotalRecordCount int               `json:"total_record_count"`
	Items            []json.RawMessage `json:"item"`
}
