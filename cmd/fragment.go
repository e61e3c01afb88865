package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// FragmentConfig controls the remote availability fragment fetch: which
// hosts are allowed and how long a request may take
type FragmentConfig struct {
	AllowedHosts *regexp.Regexp
	Timeout      time.Duration
}

const defaultFragmentHostPattern = `^https?://temple\.[a-z0-9.-]*\.exlibrisgroup\.com`

// HTTPGetError is raised when the fragment fetch times out, fails transport
// or returns a non-successful status
type HTTPGetError struct {
	Message string
}

func (e *HTTPGetError) Error() string {
	return e.Message
}

// FragmentFetcher retrieves a pre-rendered availability HTML fragment from
// the ILS-hosted endpoint. Exactly one GET per call; retry is the caller's
// decision
type FragmentFetcher struct {
	cfg    FragmentConfig
	client *http.Client
}

func newFragmentFetcher(cfg FragmentConfig) *FragmentFetcher {
	if cfg.AllowedHosts == nil {
		cfg.AllowedHosts = regexp.MustCompile(defaultFragmentHostPattern)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FragmentFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// validateURL rejects non-allow-listed hosts before any network traffic
func (f *FragmentFetcher) validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("availability URL is required")
	}
	if !f.cfg.AllowedHosts.MatchString(rawURL) {
		return fmt.Errorf("availability URL host is not allowed: %s", rawURL)
	}
	return nil
}

// transformURL makes sure the fragment renders with the new UI, without
// double-appending the parameter
func (f *FragmentFetcher) transformURL(rawURL string) string {
	if strings.Contains(rawURL, "&is_new_ui=true") {
		return rawURL
	}
	return rawURL + "&is_new_ui=true"
}

// Fetch validates the URL, then GETs the fragment within the configured
// timeout. The response body is returned verbatim; the upstream is trusted
// to have sanitized its own markup
func (f *FragmentFetcher) Fetch(rawURL string) (string, error) {
	if err := f.validateURL(rawURL); err != nil {
		return "", err
	}
	fetchURL := f.transformURL(rawURL)

	startTime := time.Now()
	resp, err := f.client.Get(fetchURL)
	elapsedMS := int64(time.Since(startTime) / time.Millisecond)
	if err != nil {
		log.Printf("ERROR: availability fragment GET %s failed: %s. Elapsed Time: %d (ms)", fetchURL, err.Error(), elapsedMS)
		return "", &HTTPGetError{Message: err.Error()}
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", &HTTPGetError{Message: readErr.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("ERROR: availability fragment GET %s - %s. Elapsed Time: %d (ms)", fetchURL, resp.Status, elapsedMS)
		return "", &HTTPGetError{Message: fmt.Sprintf("%s: %s", resp.Status, string(bodyBytes))}
	}

	log.Printf("Successful availability fragment GET %s. Elapsed Time: %d (ms)", fetchURL, elapsedMS)
	return string(bodyBytes), nil
}

// getAvailabilityFragment proxies the pre-rendered availability HTML for an
// allow-listed URL. Any validation or upstream failure is a 500
func (svc *ServiceContext) getAvailabilityFragment(c *gin.Context) {
	availabilityURL := c.Query("availability_url")
	html, err := svc.Fragments.Fetch(availabilityURL)
	if err != nil {
		log.Printf("ERROR: availability fragment request failed: %s", err.Error())
		c.String(http.StatusInternalServerError, "There was a problem retrieving availability. Please try again later.")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
