package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Item is the canonical view of one holding unit, regardless of which
// backend the raw record came from
type Item struct {
	PID                string    `json:"pid"`
	Library            string    `json:"library"`
	Location           string    `json:"location"`
	CallNumber         string    `json:"call_number"`
	AltCallNumber      string    `json:"alt_call_number,omitempty"`
	ProcessType        string    `json:"process_type,omitempty"`
	DueDate            time.Time `json:"due_date,omitempty"`
	Description        string    `json:"description,omitempty"`
	Summary            string    `json:"summary,omitempty"`
	PublicNote         string    `json:"public_note,omitempty"`
	MaterialType       string    `json:"material_type,omitempty"`
	CirculationPolicy  string    `json:"circulation_policy,omitempty"`
	HoldingID          string    `json:"holding_id,omitempty"`
	InPlace            bool      `json:"in_place"`
	Requested          bool      `json:"requested"`
	NonCirculating     bool      `json:"non_circulating"`
	AwaitingReshelving bool      `json:"awaiting_reshelving"`
}

// catalogRawItem is the flat item shape stored in the catalog index
// items_json_display field
type catalogRawItem struct {
	ItemPID            string `json:"item_pid"`
	CurrentLibrary     string `json:"current_library"`
	CurrentLocation    string `json:"current_location"`
	PermanentLibrary   string `json:"permanent_library"`
	PermanentLocation  string `json:"permanent_location"`
	CallNumber         string `json:"call_number"`
	TempCallNumber     string `json:"temp_call_number"`
	AltCallNumber      string `json:"alt_call_number"`
	ProcessType        string `json:"process_type"`
	DueDate            string `json:"due_date"`
	Description        string `json:"description"`
	Summary            string `json:"summary"`
	PublicNote         string `json:"public_note"`
	MaterialType       string `json:"material_type"`
	CirculationPolicy  string `json:"circulation_policy"`
	HoldingID          string `json:"holding_id"`
	InPlace            bool   `json:"in_place"`
	Requested          bool   `json:"requested"`
	NonCirculating     bool   `json:"non_circulating"`
	AwaitingReshelving bool   `json:"awaiting_reshelving"`
}

// codeValue is the value/desc pair the ILS API wraps coded fields in
type codeValue struct {
	Value string `json:"value"`
	Desc  string `json:"desc"`
}

// ilsRawItem is the nested item shape returned by the ILS items API
type ilsRawItem struct {
	ItemData struct {
		PID                string    `json:"pid"`
		Library            codeValue `json:"library"`
		Location           codeValue `json:"location"`
		BaseStatus         codeValue `json:"base_status"`
		ProcessType        codeValue `json:"process_type"`
		Policy             codeValue `json:"policy"`
		PhysicalMaterial   codeValue `json:"physical_material_type"`
		DueDate            string    `json:"due_date"`
		Description        string    `json:"description"`
		PublicNote         string    `json:"public_note"`
		AltCallNumber      string    `json:"alternative_call_number"`
		Requested          bool      `json:"requested"`
		AwaitingReshelving bool      `json:"awaiting_reshelving"`
	} `json:"item_data"`
	HoldingData struct {
		HoldingID      string    `json:"holding_id"`
		CallNumber     string    `json:"call_number"`
		TempCallNumber string    `json:"temp_call_number"`
		InTempLocation bool      `json:"in_temp_location"`
		TempLibrary    codeValue `json:"temp_library"`
		TempLocation   codeValue `json:"temp_location"`
	} `json:"holding_data"`
}

// normalizeCatalogItem maps one flat catalog-index record to an Item.
// Missing optional fields default to empty; a record that is not a JSON
// object is an error
func normalizeCatalogItem(raw json.RawMessage) (Item, error) {
	var rec catalogRawItem
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Item{}, fmt.Errorf("malformed catalog item record: %s", err.Error())
	}

	item := Item{
		PID:                rec.ItemPID,
		Library:            firstNonEmpty(rec.CurrentLibrary, rec.PermanentLibrary),
		Location:           firstNonEmpty(rec.CurrentLocation, rec.PermanentLocation),
		CallNumber:         firstNonEmpty(rec.TempCallNumber, rec.CallNumber),
		AltCallNumber:      rec.AltCallNumber,
		ProcessType:        rec.ProcessType,
		Description:        rec.Description,
		Summary:            rec.Summary,
		PublicNote:         rec.PublicNote,
		MaterialType:       rec.MaterialType,
		CirculationPolicy:  rec.CirculationPolicy,
		HoldingID:          rec.HoldingID,
		InPlace:            rec.InPlace,
		Requested:          rec.Requested,
		NonCirculating:     rec.NonCirculating,
		AwaitingReshelving: rec.AwaitingReshelving,
	}
	item.DueDate = parseDueDate(rec.DueDate)
	return item, nil
}

// normalizeIlsItem maps one nested ILS API record to an Item. The temp
// library/location from holding_data override the permanent ones when the
// item is flagged in_temp_location, and a non-empty temp call number wins
// over the holding call number
func normalizeIlsItem(raw json.RawMessage) (Item, error) {
	var rec ilsRawItem
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Item{}, fmt.Errorf("malformed ILS item record: %s", err.Error())
	}

	item := Item{
		PID:                rec.ItemData.PID,
		Library:            rec.ItemData.Library.Value,
		Location:           rec.ItemData.Location.Value,
		CallNumber:         firstNonEmpty(rec.HoldingData.TempCallNumber, rec.HoldingData.CallNumber),
		AltCallNumber:      rec.ItemData.AltCallNumber,
		ProcessType:        rec.ItemData.ProcessType.Value,
		Description:        rec.ItemData.Description,
		PublicNote:         rec.ItemData.PublicNote,
		MaterialType:       rec.ItemData.PhysicalMaterial.Value,
		CirculationPolicy:  rec.ItemData.Policy.Desc,
		HoldingID:          rec.HoldingData.HoldingID,
		InPlace:            rec.ItemData.BaseStatus.Value == "1",
		Requested:          rec.ItemData.Requested,
		AwaitingReshelving: rec.ItemData.AwaitingReshelving,
	}
	if rec.HoldingData.InTempLocation {
		item.Library = firstNonEmpty(rec.HoldingData.TempLibrary.Value, item.Library)
		item.Location = firstNonEmpty(rec.HoldingData.TempLocation.Value, item.Location)
	}
	item.NonCirculating = strings.Contains(rec.ItemData.Policy.Desc, "Non-circulating")
	item.DueDate = parseDueDate(rec.ItemData.DueDate)
	return item, nil
}

// normalizeItem picks the right mapping for a raw record by shape; nested
// ILS records carry an item_data key, catalog index records are flat
func normalizeItem(raw json.RawMessage) (Item, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Item{}, fmt.Errorf("malformed item record: %s", err.Error())
	}
	if _, nested := probe["item_data"]; nested {
		return normalizeIlsItem(raw)
	}
	return normalizeCatalogItem(raw)
}

func parseDueDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02"} {
		if due, err := time.Parse(layout, val); err == nil {
			return due
		}
	}
	log.Printf("WARN: unparsable due date: %s", val)
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
