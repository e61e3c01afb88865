package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sosodev/duration"
	"golang.org/x/time/rate"
)

// ErrArticleNotFound flags a single-record lookup that matched nothing, so
// callers can render "not found" instead of an empty list
var ErrArticleNotFound = errors.New("article not found")

const fallbackCacheLife = 12 * time.Hour

// Cache is a shared expiring key-value store with get-or-compute semantics.
// Writers race benignly: values for the same key are deterministic for a
// given upstream response, so last-write-wins is fine
type Cache interface {
	Fetch(key string, expiry time.Duration, compute func() ([]byte, error)) ([]byte, error)
}

type memoryCache struct {
	store *gocache.Cache
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (c *memoryCache) Fetch(key string, expiry time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if cached, found := c.store.Get(key); found {
		return cached.([]byte), nil
	}
	val, err := compute()
	if err != nil {
		return nil, err
	}
	c.store.Set(key, val, expiry)
	return val, nil
}

// PrimoConfig is the article search API configuration
type PrimoConfig struct {
	URL        string
	APIKey     string
	CacheLives map[string]string
	RPS        float64
}

// PrimoQuery is a normalized article search request. The url tags drive
// both the API query string and the cache key
type PrimoQuery struct {
	ID      string `url:"id,omitempty" json:"id,omitempty"`
	Q       string `url:"q,omitempty" json:"q,omitempty"`
	Title   string `url:"title,omitempty" json:"title,omitempty"`
	Creator string `url:"creator,omitempty" json:"creator,omitempty"`
	Subject string `url:"subject,omitempty" json:"subject,omitempty"`
	ISBN    string `url:"isbn,omitempty" json:"isbn,omitempty"`
	ISSN    string `url:"issn,omitempty" json:"issn,omitempty"`
	Limit   int    `url:"limit,omitempty" json:"limit,omitempty"`
	Offset  int    `url:"offset,omitempty" json:"offset,omitempty"`
}

// trivial reports whether every query term is blank or a bare wildcard.
// Trivial queries never hit the remote API
func (q PrimoQuery) trivial() bool {
	if q.ID != "" {
		return false
	}
	for _, term := range []string{q.Q, q.Title, q.Creator, q.Subject, q.ISBN, q.ISSN} {
		if term != "" && term != "*" {
			return false
		}
	}
	return true
}

// PrimoFacetValue is one value/count pair in an article facet
type PrimoFacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PrimoFacet is one facet returned by the article API
type PrimoFacet struct {
	Name   string            `json:"name"`
	Values []PrimoFacetValue `json:"values"`
}

// PrimoResultSet is a decoded article search response
type PrimoResultSet struct {
	Docs   []json.RawMessage `json:"docs"`
	Total  int               `json:"total"`
	Facets []PrimoFacet      `json:"facets,omitempty"`
}

// primoRawResponse is the wire shape of the article API response
type primoRawResponse struct {
	Docs []json.RawMessage `json:"docs"`
	Info struct {
		Total int `json:"total"`
	} `json:"info"`
	Facets []PrimoFacet `json:"facets"`
}

// PrimoRepository wraps the article search API with a response cache and a
// rate limiter
type PrimoRepository struct {
	cfg     PrimoConfig
	client  *http.Client
	cache   Cache
	limiter *rate.Limiter
}

func newPrimoRepository(cfg PrimoConfig, client *http.Client, cache Cache) *PrimoRepository {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	return &PrimoRepository{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Find looks up a single article record. The id arrives in its escaped form
// and is decoded before use as a lookup key
func (r *PrimoRepository) Find(id string) (*PrimoResultSet, error) {
	return r.Search(PrimoQuery{ID: decodePrimoID(id)})
}

// Search executes an article search. Successful responses are cached keyed
// by the normalized query; single-record lookups and multi-result queries
// have separate cache lifetimes
func (r *PrimoRepository) Search(q PrimoQuery) (*PrimoResultSet, error) {
	if q.trivial() {
		log.Printf("INFO: trivial article query, skipping remote search")
		return &PrimoResultSet{Docs: make([]json.RawMessage, 0)}, nil
	}

	cacheLife := r.durationFor("article_search_cache_life")
	if q.ID != "" {
		cacheLife = r.durationFor("article_record_cache_life")
	}

	qs, err := query.Values(q)
	if err != nil {
		return nil, err
	}
	queryStr := qs.Encode()
	cacheKey := fmt.Sprintf("articles/index/%s", queryStr)

	bodyBytes, err := r.cache.Fetch(cacheKey, cacheLife, func() ([]byte, error) {
		return r.remoteSearch(queryStr)
	})
	if err != nil {
		return nil, err
	}

	var raw primoRawResponse
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse article search response: %s", err.Error())
	}

	if q.ID != "" {
		if len(raw.Docs) == 0 {
			return nil, ErrArticleNotFound
		}
		return &PrimoResultSet{Docs: raw.Docs, Total: 1}, nil
	}

	return &PrimoResultSet{Docs: raw.Docs, Total: raw.Info.Total, Facets: raw.Facets}, nil
}

func (r *PrimoRepository) remoteSearch(queryStr string) ([]byte, error) {
	if waitErr := r.limiter.Wait(context.Background()); waitErr != nil {
		return nil, waitErr
	}

	searchURL := fmt.Sprintf("%s/search?%s", r.cfg.URL, queryStr)
	log.Printf("Article API GET request: %s", searchURL)
	req, _ := http.NewRequest("GET", searchURL, nil)
	req.Header.Add("Authorization", fmt.Sprintf("apikey %s", r.cfg.APIKey))

	startTime := time.Now()
	rawResp, rawErr := r.client.Do(req)
	resp, reqErr := handleAPIResponse(searchURL, rawResp, rawErr)
	elapsedMS := int64(time.Since(startTime) / time.Millisecond)

	if reqErr != nil {
		log.Printf("ERROR: Failed response from article API GET %s - %d:%s. Elapsed Time: %d (ms)",
			searchURL, reqErr.StatusCode, reqErr.Message, elapsedMS)
		return nil, fmt.Errorf("%d:%s", reqErr.StatusCode, reqErr.Message)
	}
	log.Printf("Successful response from article API GET %s. Elapsed Time: %d (ms)", searchURL, elapsedMS)
	return resp, nil
}

// durationFor parses the configured ISO-8601 cache lifetime for a cache
// namespace. A parse failure must not take down the request path; it falls
// back to 12 hours
func (r *PrimoRepository) durationFor(cacheName string) time.Duration {
	delta := r.cfg.CacheLives[cacheName]
	if delta == "" {
		return fallbackCacheLife
	}
	parsed, err := duration.Parse(delta)
	if err != nil {
		log.Printf("ERROR: failed to parse ISO-8601 formatted duration %s for %s", delta, cacheName)
		return fallbackCacheLife
	}
	return parsed.ToTimeDuration()
}

// Identifier escaping: punctuation unsafe in a URL path segment is swapped
// for textual placeholders when exposed, and reversed exactly on the way
// back in

func encodePrimoID(id string) string {
	id = strings.ReplaceAll(id, ".", "-dot-")
	id = strings.ReplaceAll(id, "/", "-slash-")
	id = strings.ReplaceAll(id, ";", "-semicolon-")
	return id
}

func decodePrimoID(id string) string {
	id = strings.ReplaceAll(id, "-dot-", ".")
	id = strings.ReplaceAll(id, "-slash-", "/")
	id = strings.ReplaceAll(id, "-semicolon-", ";")
	return id
}

// getArticle looks up one article record by its escaped identifier
func (svc *ServiceContext) getArticle(c *gin.Context) {
	id := c.Param("id")
	log.Printf("INFO: article lookup for [%s]", id)

	result, err := svc.Primo.Find(id)
	if err != nil {
		if errors.Is(err, ErrArticleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found", "id": id})
			return
		}
		log.Printf("ERROR: article lookup failed: %s", err.Error())
		c.String(http.StatusInternalServerError, "There was a problem with your search. Please try again later.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// searchArticles runs an article search with the supported query terms
func (svc *ServiceContext) searchArticles(c *gin.Context) {
	q := PrimoQuery{
		Q:       c.Query("q"),
		Title:   c.Query("title"),
		Creator: c.Query("creator"),
		Subject: c.Query("subject"),
		ISBN:    c.Query("isbn"),
		ISSN:    c.Query("issn"),
	}
	log.Printf("INFO: article search %+v", q)

	result, err := svc.Primo.Search(q)
	if err != nil {
		log.Printf("ERROR: article search failed: %s", err.Error())
		c.String(http.StatusInternalServerError, "There was a problem with your search. Please try again later.")
		return
	}
	c.JSON(http.StatusOK, result)
}
