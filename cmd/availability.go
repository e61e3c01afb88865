package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Status codes for an item's computed availability
const (
	StatusAvailable        = "available"
	StatusOnsiteOnly       = "onsite"
	StatusPendingRequest   = "pending"
	StatusLibraryUseOnly   = "library-use-only"
	StatusCheckedOut       = "checked-out"
	StatusReshelving       = "reshelving"
	StatusTempUnavailable  = "temp-unavailable"
	StatusMissing          = "missing"
	StatusUnknown          = "unknown"
	defaultUnavailableText = "Checked out or currently unavailable"
)

// AvailabilityStatus is the display classification for one item. Derived on
// every render, never stored
type AvailabilityStatus struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	DueDate string `json:"due_date,omitempty"`
}

// AvailabilityConfig carries the externally supplied tables the classifier
// reads. All lookups degrade to defaults when a code is missing
type AvailabilityConfig struct {
	ProcessTypes         map[string]string `yaml:"process_types"`
	LoanProcessTypes     []string          `yaml:"loan_process_types"`
	UnavailableLibraries []string          `yaml:"unavailable_libraries"`
	UnavailableLocations []string          `yaml:"unavailable_locations"`
	ReserveLocations     []string          `yaml:"reserve_locations"`
	BoundJournalPolicy   string            `yaml:"bound_journal_policy"`
}

// classifyAvailability resolves one item to its display status. Precedence
// is fixed: temporary exclusions, then reshelving, then the in-place and
// requested flags, then process type
func classifyAvailability(item Item, cfg *AvailabilityConfig) AvailabilityStatus {
	if containsString(cfg.UnavailableLibraries, item.Library) ||
		containsString(cfg.UnavailableLocations, item.Location) {
		return AvailabilityStatus{Code: StatusTempUnavailable, Label: "Temporarily unavailable"}
	}

	if item.AwaitingReshelving {
		return AvailabilityStatus{Code: StatusReshelving, Label: "Awaiting Reshelving"}
	}

	if item.InPlace && !item.Requested {
		if nonCirculatingItem(item, cfg) {
			if strings.Contains(item.CirculationPolicy, "Non-circulating") {
				return AvailabilityStatus{Code: StatusLibraryUseOnly, Label: "Library Use Only"}
			}
			return AvailabilityStatus{Code: StatusOnsiteOnly, Label: "Available - Onsite only"}
		}
		return AvailabilityStatus{Code: StatusAvailable, Label: "Available"}
	}

	if item.InPlace && item.Requested {
		return AvailabilityStatus{Code: StatusPendingRequest, Label: "Available (Pending Request)"}
	}

	return unavailableStatus(item, cfg)
}

// nonCirculatingItem reports whether an in-place item can only be used
// onsite
func nonCirculatingItem(item Item, cfg *AvailabilityConfig) bool {
	return item.NonCirculating ||
		containsString(cfg.ReserveLocations, item.Location) ||
		(cfg.BoundJournalPolicy != "" && item.CirculationPolicy == cfg.BoundJournalPolicy)
}

// unavailableStatus resolves an out-of-place item through the process type
// table. Unknown process types keep the default label; loan-type items with
// a due date get it appended to the label
func unavailableStatus(item Item, cfg *AvailabilityConfig) AvailabilityStatus {
	if item.ProcessType == "" {
		return AvailabilityStatus{Code: StatusCheckedOut, Label: defaultUnavailableText}
	}

	label, ok := cfg.ProcessTypes[item.ProcessType]
	if !ok {
		label = defaultUnavailableText
	}

	code := StatusCheckedOut
	if missingOrLostProcessType(item.ProcessType) {
		code = StatusMissing
	}

	status := AvailabilityStatus{Code: code, Label: label}
	if containsString(cfg.LoanProcessTypes, item.ProcessType) && !item.DueDate.IsZero() {
		status.DueDate = formatDueDate(item.DueDate)
		status.Label = fmt.Sprintf("%s, due %s", label, status.DueDate)
	}
	return status
}

func formatDueDate(due time.Time) string {
	return due.Format("Jan 2, 2006")
}

func containsString(arr []string, val string) bool {
	for _, a := range arr {
		if a == val {
			return true
		}
	}
	return false
}

// getAvailability returns grouped availability for one catalog document
// based on the item records stored in the catalog index
func (svc *ServiceContext) getAvailability(c *gin.Context) {
	titleID := c.Param("id")
	log.Printf("Getting availability for %s from catalog index...", titleID)

	solrDoc, err := svc.getSolrDoc(titleID)
	if err != nil {
		log.Printf("ERROR: catalog lookup for %s failed: %s", titleID, err.Error())
		c.String(http.StatusNotFound, "Availability information is not available for this record.")
		return
	}

	items := make([]Item, 0)
	for _, raw := range solrDoc.ItemsJSONDisplay {
		item, normErr := normalizeCatalogItem(raw)
		if normErr != nil {
			log.Printf("ERROR: bad item record on %s: %s", titleID, normErr.Error())
			c.String(http.StatusInternalServerError, "There was a problem retrieving availability. Please try again later.")
			return
		}
		items = append(items, item)
	}

	resp := svc.buildAvailabilityResponse(titleID, items)
	c.JSON(http.StatusOK, resp)
}

// getIlsAvailability returns grouped availability for one document using
// live item records from the ILS items API
func (svc *ServiceContext) getIlsAvailability(c *gin.Context) {
	titleID := c.Param("id")
	log.Printf("Getting live availability for %s from ILS...", titleID)

	itemsURL := fmt.Sprintf("%s/almaws/v1/bibs/%s/holdings/ALL/items?limit=100&expand=due_date", svc.AlmaAPI, url.PathEscape(titleID))
	bodyBytes, almaErr := svc.AlmaGet(itemsURL)
	if almaErr != nil {
		log.Printf("ERROR: ILS items request failed: %d:%s", almaErr.StatusCode, almaErr.Message)
		c.String(almaErr.StatusCode, "There was a problem retrieving availability. Please try again later.")
		return
	}

	var itemList ilsItemList
	if err := json.Unmarshal(bodyBytes, &itemList); err != nil {
		log.Printf("ERROR: unable to parse ILS items response: %s", err.Error())
		c.String(http.StatusInternalServerError, "There was a problem retrieving availability. Please try again later.")
		return
	}

	items := make([]Item, 0)
	for _, raw := range itemList.Items {
		item, normErr := normalizeIlsItem(raw)
		if normErr != nil {
			log.Printf("ERROR: bad ILS item record on %s: %s", titleID, normErr.Error())
			c.String(http.StatusInternalServerError, "There was a problem retrieving availability. Please try again later.")
			return
		}
		items = append(items, item)
	}

	resp := svc.buildAvailabilityResponse(titleID, items)
	c.JSON(http.StatusOK, resp)
}

func (svc *ServiceContext) buildAvailabilityResponse(titleID string, items []Item) AvailabilityResponse {
	resp := AvailabilityResponse{ID: titleID}

	// Display mapping from item field to label. Localize at some point. Maybe.
	resp.Display = make(map[string]string)
	resp.Display["library"] = "Library"
	resp.Display["location"] = "Location"
	resp.Display["call_number"] = "Call Number"
	resp.Display["status"] = "Status"

	resp.Holdings = groupHoldings(items, svc.Holdings)
	for gi := range resp.Holdings {
		for li := range resp.Holdings[gi].Locations {
			loc := &resp.Holdings[gi].Locations[li]
			for ii := range loc.Items {
				loc.Items[ii].Status = classifyAvailability(loc.Items[ii].Item, svc.Availability)
			}
		}
	}
	return resp
}

func (svc *ServiceContext) getSolrDoc(id string) (*SolrDocument, error) {
	fields := url.QueryEscape("id,title_statement_display,items_json_display")
	solrPath := fmt.Sprintf(`select?fl=%s&q=id%%3A%%22%s%%22`, fields, url.QueryEscape(id))

	respBytes, solrErr := svc.SolrGet(solrPath)
	if solrErr != nil {
		return nil, fmt.Errorf("catalog request failed: %s", solrErr.Message)
	}
	var solrResp SolrResponse
	if err := json.Unmarshal(respBytes, &solrResp); err != nil {
		return nil, fmt.Errorf("unable to parse catalog response: %s", err.Error())
	}
	if solrResp.Response.NumFound == 0 || len(solrResp.Response.Docs) == 0 {
		return nil, fmt.Errorf("no record found for %s", id)
	}
	if solrResp.Response.NumFound > 1 {
		log.Printf("WARN: more than one record found for the cat key: %s", id)
	}
	return &solrResp.Response.Docs[0], nil
}
