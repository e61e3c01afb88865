package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceContext contains common data used by all handlers
type ServiceContext struct {
	Version        string
	AlmaAPI        string
	AlmaKey        string
	Solr           SolrConfig
	ContentDMAPI   string
	Availability   *AvailabilityConfig
	Holdings       *HoldingsConfig
	Fragments      *FragmentFetcher
	Primo          *PrimoRepository
	Bento          *BentoSearcher
	HTTPClient     *http.Client
	FastHTTPClient *http.Client
}

// RequestError contains http status code and message for a failed
// outbound request
type RequestError struct {
	StatusCode int
	Message    string
}

// intializeService will initialize the service context based on the config parameters
func intializeService(version string, cfg *ServiceConfig) (*ServiceContext, error) {
	ctx := ServiceContext{Version: version,
		Solr:         cfg.Solr,
		AlmaAPI:      cfg.AlmaAPI,
		AlmaKey:      cfg.AlmaKey,
		ContentDMAPI: cfg.ContentDMAPI,
	}

	mappings, err := loadMappings(cfg.MappingsFile)
	if err != nil {
		return nil, err
	}
	ctx.Availability = mappings.availabilityConfig()
	ctx.Holdings, err = mappings.holdingsConfig()
	if err != nil {
		return nil, err
	}

	log.Printf("Create HTTP client for external service calls")
	defaultTransport := &http.Transport{
		Dial: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 600 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
	}
	ctx.HTTPClient = &http.Client{
		Transport: defaultTransport,
		Timeout:   10 * time.Second,
	}
	ctx.FastHTTPClient = &http.Client{
		Transport: defaultTransport,
		Timeout:   5 * time.Second,
	}

	fragmentCfg, err := mappings.fragmentConfig(cfg.FragmentTimeout)
	if err != nil {
		return nil, err
	}
	ctx.Fragments = newFragmentFetcher(fragmentCfg)

	ctx.Primo = newPrimoRepository(PrimoConfig{
		URL:        cfg.Primo.URL,
		APIKey:     cfg.Primo.APIKey,
		CacheLives: mappings.CacheLives,
		RPS:        cfg.Primo.RPS,
	}, ctx.HTTPClient, newMemoryCache())

	ctx.Bento = &BentoSearcher{
		Engines: []SearchEngine{
			&solrBentoEngine{svc: &ctx},
			&cdmBentoEngine{svc: &ctx},
			&articlesBentoEngine{repo: ctx.Primo},
		},
		PrimaryEngine: "books_and_media",
		MergeEngine:   "cdm",
		MergeFacet:    "format",
		MergeValue:    "digital_collections",
	}

	return &ctx, nil
}

// ignoreFavicon is a dummy to handle browser favicon requests without warnings
func (svc *ServiceContext) ignoreFavicon(c *gin.Context) {
}

// GetVersion reports the version of the serivce
func (svc *ServiceContext) getVersion(c *gin.Context) {
	build := "unknown"
	// cos our CWD is the bin directory
	files, _ := filepath.Glob("../buildtag.*")
	if len(files) == 1 {
		build = strings.Replace(files[0], "../buildtag.", "", 1)
	}

	vMap := make(map[string]string)
	vMap["version"] = svc.Version
	vMap["build"] = build
	c.JSON(http.StatusOK, vMap)
}

// HealthCheck reports the health of the server
func (svc *ServiceContext) healthCheck(c *gin.Context) {
	log.Printf("Got healthcheck request")
	type hcResp struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message,omitempty"`
	}
	hcMap := make(map[string]hcResp)

	if svc.Solr.URL != "" {
		pingURL := fmt.Sprintf("%s/%s/admin/ping", svc.Solr.URL, svc.Solr.Core)
		resp, err := svc.FastHTTPClient.Get(pingURL)
		if resp != nil {
			defer resp.Body.Close()
		}
		if err != nil {
			log.Printf("ERROR: Failed response from Solr PING: %s - %s", err.Error(), pingURL)
			hcMap["solr"] = hcResp{Healthy: false, Message: err.Error()}
		} else {
			hcMap["solr"] = hcResp{Healthy: true}
		}
	}

	if svc.AlmaAPI != "" {
		apiURL := fmt.Sprintf("%s/almaws/v1/conf/general", svc.AlmaAPI)
		_, almaErr := svc.AlmaGet(apiURL)
		if almaErr != nil {
			log.Printf("ERROR: Failed response from ILS PING: %s", almaErr.Message)
			hcMap["ils"] = hcResp{Healthy: false, Message: almaErr.Message}
		} else {
			hcMap["ils"] = hcResp{Healthy: true}
		}
	}

	c.JSON(http.StatusOK, hcMap)
}

type solrRequestParams struct {
	Rows int      `json:"rows"`
	Fq   []string `json:"fq,omitempty"`
	Q    string   `json:"q,omitempty"`
}

type solrRequestFacet struct {
	Type  string `json:"type,omitempty"`
	Field string `json:"field,omitempty"`
	Sort  string `json:"sort,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type solrRequest struct {
	Params solrRequestParams           `json:"params"`
	Facets map[string]solrRequestFacet `json:"facet,omitempty"`
}

// AlmaGet sends a GET request to the ILS API and returns the response
func (svc *ServiceContext) AlmaGet(url string) ([]byte, *RequestError) {
	logURL := sanitizeURL(url)
	log.Printf("ILS GET request: %s, timeout %.0f sec", logURL, svc.HTTPClient.Timeout.Seconds())
	req, _ := http.NewRequest("GET", url, nil)
	req.Header.Add("Authorization", fmt.Sprintf("apikey %s", svc.AlmaKey))
	req.Header.Add("Accept", "application/json")

	startTime := time.Now()
	rawResp, rawErr := svc.HTTPClient.Do(req)
	resp, err := handleAPIResponse(logURL, rawResp, rawErr)
	elapsedNanoSec := time.Since(startTime)
	elapsedMS := int64(elapsedNanoSec / time.Millisecond)

	if err != nil {
		if shouldLogAsError(err.StatusCode) {
			log.Printf("ERROR: Failed response from ILS GET %s - %d:%s. Elapsed Time: %d (ms)",
				logURL, err.StatusCode, err.Message, elapsedMS)
		} else {
			log.Printf("INFO: Response from ILS GET %s - %d:%s. Elapsed Time: %d (ms)",
				logURL, err.StatusCode, err.Message, elapsedMS)
		}
	} else {
		log.Printf("Successful response from ILS GET %s. Elapsed Time: %d (ms)", logURL, elapsedMS)
	}
	return resp, err
}

// ContentDMGet sends a GET request to the digital collections API
func (svc *ServiceContext) ContentDMGet(url string) ([]byte, *RequestError) {
	log.Printf("Digital collections GET request: %s", url)
	startTime := time.Now()
	rawResp, rawErr := svc.FastHTTPClient.Get(url)
	resp, err := handleAPIResponse(url, rawResp, rawErr)
	elapsedNanoSec := time.Since(startTime)
	elapsedMS := int64(elapsedNanoSec / time.Millisecond)

	if err != nil {
		log.Printf("ERROR: Failed response from digital collections GET %s - %d:%s. Elapsed Time: %d (ms)",
			url, err.StatusCode, err.Message, elapsedMS)
	} else {
		log.Printf("Successful response from digital collections GET %s. Elapsed Time: %d (ms)", url, elapsedMS)
	}
	return resp, err
}

// SolrGet sends a GET request to solr and returns the response
func (svc *ServiceContext) SolrGet(query string) ([]byte, *RequestError) {
	url := fmt.Sprintf("%s/%s/%s", svc.Solr.URL, svc.Solr.Core, query)
	log.Printf("Solr GET request: %s", url)
	startTime := time.Now()
	rawResp, rawErr := svc.FastHTTPClient.Get(url)
	resp, err := handleAPIResponse(url, rawResp, rawErr)
	elapsedNanoSec := time.Since(startTime)
	elapsedMS := int64(elapsedNanoSec / time.Millisecond)

	if err != nil {
		log.Printf("ERROR: Failed response from Solr GET %s - %d:%s. Elapsed Time: %d (ms)",
			url, err.StatusCode, err.Message, elapsedMS)
	} else {
		log.Printf("Successful response from Solr GET %s. Elapsed Time: %d (ms)", url, elapsedMS)
	}
	return resp, err
}

// SolrPost sends a json POST request to solr and returns the response
func (svc *ServiceContext) SolrPost(query string, jsonReq interface{}) ([]byte, *RequestError) {
	url := fmt.Sprintf("%s/%s/%s", svc.Solr.URL, svc.Solr.Core, query)

	jsonBytes, jsonErr := json.Marshal(jsonReq)
	if jsonErr != nil {
		resp, err := handleAPIResponse(url, nil, jsonErr)
		return resp, err
	}

	req, reqErr := http.NewRequest("POST", url, bytes.NewBuffer(jsonBytes))
	if reqErr != nil {
		resp, err := handleAPIResponse(url, nil, reqErr)
		return resp, err
	}

	req.Header.Set("Content-Type", "application/json")

	log.Printf("Solr POST request: %s", url)
	startTime := time.Now()
	rawResp, rawErr := svc.FastHTTPClient.Do(req)
	resp, err := handleAPIResponse(url, rawResp, rawErr)
	elapsedNanoSec := time.Since(startTime)
	elapsedMS := int64(elapsedNanoSec / time.Millisecond)

	if err != nil {
		log.Printf("ERROR: Failed response from Solr POST %s - %d:%s. Elapsed Time: %d (ms)",
			url, err.StatusCode, err.Message, elapsedMS)
	} else {
		log.Printf("Successful response from Solr POST %s. Elapsed Time: %d (ms)", url, elapsedMS)
	}
	return resp, err
}

func handleAPIResponse(logURL string, resp *http.Response, err error) ([]byte, *RequestError) {
	if err != nil {
		status := http.StatusBadRequest
		errMsg := err.Error()
		if strings.Contains(err.Error(), "Timeout") {
			status = http.StatusRequestTimeout
			errMsg = fmt.Sprintf("%s timed out", logURL)
		} else if strings.Contains(err.Error(), "connection refused") {
			status = http.StatusServiceUnavailable
			errMsg = fmt.Sprintf("%s refused connection", logURL)
		}
		return nil, &RequestError{StatusCode: status, Message: errMsg}
	} else if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		status := resp.StatusCode
		errMsg := string(bodyBytes)
		return nil, &RequestError{StatusCode: status, Message: errMsg}
	}

	defer resp.Body.Close()
	bodyBytes, _ := io.ReadAll(resp.Body)
	return bodyBytes, nil
}

// do we log this http response as an error or is it expected under normal circumstances
func shouldLogAsError(httpStatus int) bool {
	return httpStatus != http.StatusOK && httpStatus != http.StatusNotFound
}

// sanitize a url for logging by removing the API key
func sanitizeURL(url string) string {

	// URL may contain the API key
	ix := strings.Index(url, "apikey=")

	// replace everything after
	if ix >= 0 {
		return url[0:ix] + "apikey=SECRET"
	}

	return url
}
