package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	"golang.org/x/sync/errgroup"
)

// FacetCount is one value/count pair inside a facet field
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FacetField is a categorical breakdown of result counts
type FacetField struct {
	Name   string       `json:"name"`
	Counts []FacetCount `json:"counts"`
}

// EngineResult is one search backend's contribution to a bento response
type EngineResult struct {
	EngineID string            `json:"engine_id"`
	Total    int               `json:"total"`
	Facets   []FacetField      `json:"facets,omitempty"`
	Records  []json.RawMessage `json:"records,omitempty"`
}

// SearchEngine is one independently searchable backend
type SearchEngine interface {
	ID() string
	Search(q string) (*EngineResult, error)
}

// BentoSearcher runs every engine concurrently and joins the results. The
// contract is all-or-nothing: if any engine fails, the whole search fails
// and the caller decides how to degrade
type BentoSearcher struct {
	Engines       []SearchEngine
	PrimaryEngine string
	MergeEngine   string
	MergeFacet    string
	MergeValue    string
}

// Search fans the query out to every engine, one goroutine per engine, and
// blocks until all have finished. Results are keyed by engine id so the
// collection order does not matter. Engines are not cancelled when a peer
// fails; they run to completion and the first error wins
func (b *BentoSearcher) Search(q string) (map[string]*EngineResult, error) {
	var g errgroup.Group
	var mu sync.Mutex
	results := make(map[string]*EngineResult)

	for _, engine := range b.Engines {
		engine := engine
		g.Go(func() error {
			res, err := engine.Search(q)
			if err != nil {
				return fmt.Errorf("%s search failed: %w", engine.ID(), err)
			}
			mu.Lock()
			results[engine.ID()] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.mergeCollectionTotal(results)
	return results, nil
}

// mergeCollectionTotal folds the digital-collection engine's total into the
// primary engine's facet counts and drops it from the standalone results.
// It is never rendered as a first-class result
func (b *BentoSearcher) mergeCollectionTotal(results map[string]*EngineResult) {
	if b.MergeEngine == "" {
		return
	}
	merged, ok := results[b.MergeEngine]
	if !ok {
		return
	}
	delete(results, b.MergeEngine)

	primary, ok := results[b.PrimaryEngine]
	if !ok {
		return
	}
	count := FacetCount{Value: b.MergeValue, Count: merged.Total}
	for i := range primary.Facets {
		if primary.Facets[i].Name == b.MergeFacet {
			primary.Facets[i].Counts = append(primary.Facets[i].Counts, count)
			return
		}
	}
	primary.Facets = append(primary.Facets, FacetField{Name: b.MergeFacet, Counts: []FacetCount{count}})
}

// searchBento runs the multi-source search and returns the aggregate. Any
// single engine failure fails the whole request
func (svc *ServiceContext) searchBento(c *gin.Context) {
	q := c.Query("q")
	log.Printf("INFO: bento search for [%s]", q)

	results, err := svc.Bento.Search(q)
	if err != nil {
		log.Printf("ERROR: bento search failed: %s", err.Error())
		c.String(http.StatusInternalServerError, "There was a problem with your search. Please try again later.")
		return
	}
	c.JSON(http.StatusOK, results)
}

// solrBentoEngine searches the catalog index, the primary bento source
type solrBentoEngine struct {
	svc *ServiceContext
}

func (e *solrBentoEngine) ID() string {
	return "books_and_media"
}

func (e *solrBentoEngine) Search(q string) (*EngineResult, error) {
	req := solrRequest{
		Params: solrRequestParams{Rows: 3, Q: q},
		Facets: map[string]solrRequestFacet{
			"format": {Type: "terms", Field: "format", Sort: "count", Limit: 10},
		},
	}
	respBytes, solrErr := e.svc.SolrPost("query", req)
	if solrErr != nil {
		return nil, fmt.Errorf("%d:%s", solrErr.StatusCode, solrErr.Message)
	}

	var solrResp struct {
		Response struct {
			Docs     []json.RawMessage `json:"docs"`
			NumFound int               `json:"numFound"`
		} `json:"response"`
		Facets map[string]json.RawMessage `json:"facets"`
	}
	if err := json.Unmarshal(respBytes, &solrResp); err != nil {
		return nil, fmt.Errorf("unable to parse catalog search response: %s", err.Error())
	}

	result := EngineResult{
		EngineID: e.ID(),
		Total:    solrResp.Response.NumFound,
		Records:  solrResp.Response.Docs,
	}
	for name, raw := range solrResp.Facets {
		if name == "count" {
			continue
		}
		var bucketList struct {
			Buckets []struct {
				Val   string `json:"val"`
				Count int    `json:"count"`
			} `json:"buckets"`
		}
		if err := json.Unmarshal(raw, &bucketList); err != nil {
			log.Printf("WARN: unable to parse %s facet buckets: %s", name, err.Error())
			continue
		}
		field := FacetField{Name: name}
		for _, bucket := range bucketList.Buckets {
			field.Counts = append(field.Counts, FacetCount{Value: bucket.Val, Count: bucket.Count})
		}
		result.Facets = append(result.Facets, field)
	}
	return &result, nil
}

// cdmBentoEngine searches the digital collections API. Its total is only
// ever merged into the primary engine's facets
type cdmBentoEngine struct {
	svc *ServiceContext
}

func (e *cdmBentoEngine) ID() string {
	return "cdm"
}

func (e *cdmBentoEngine) Search(q string) (*EngineResult, error) {
	params := struct {
		Query  string `url:"query"`
		Format string `url:"format"`
	}{Query: q, Format: "json"}
	qs, err := query.Values(params)
	if err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/search?%s", e.svc.ContentDMAPI, qs.Encode())
	respBytes, reqErr := e.svc.ContentDMGet(searchURL)
	if reqErr != nil {
		return nil, fmt.Errorf("%d:%s", reqErr.StatusCode, reqErr.Message)
	}

	var cdmResp struct {
		Results struct {
			Pager struct {
				Total json.Number `json:"total"`
			} `json:"pager"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBytes, &cdmResp); err != nil {
		return nil, fmt.Errorf("unable to parse digital collections response: %s", err.Error())
	}
	total, _ := cdmResp.Results.Pager.Total.Int64()
	return &EngineResult{EngineID: e.ID(), Total: int(total)}, nil
}

// articlesBentoEngine searches the article aggregator through the cached
// Primo repository
type articlesBentoEngine struct {
	repo *PrimoRepository
}

func (e *articlesBentoEngine) ID() string {
	return "articles"
}

func (e *articlesBentoEngine) Search(q string) (*EngineResult, error) {
	resultSet, err := e.repo.Search(PrimoQuery{Q: q})
	if err != nil {
		return nil, err
	}

	result := EngineResult{EngineID: e.ID(), Total: resultSet.Total, Records: resultSet.Docs}
	for _, facet := range resultSet.Facets {
		field := FacetField{Name: facet.Name}
		for _, val := range facet.Values {
			field.Counts = append(field.Counts, FacetCount{Value: val.Value, Count: val.Count})
		}
		result.Facets = append(result.Facets, field)
	}
	return &result, nil
}
