package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// SolrConfig wraps up the config for solr access
type SolrConfig struct {
	URL  string
	Core string
}

// PrimoEndpointConfig contains the configuration necessary to communicate
// with the article search API
type PrimoEndpointConfig struct {
	URL    string
	APIKey string
	RPS    float64
}

// ServiceConfig defines all of the availability service configuration parameters
type ServiceConfig struct {
	Port            int
	AlmaAPI         string
	AlmaKey         string
	ContentDMAPI    string
	MappingsFile    string
	FragmentTimeout int
	Primo           PrimoEndpointConfig
	Solr            SolrConfig
}

// LoadConfig will load the service configuration from env/cmdline
func loadConfiguration() *ServiceConfig {
	var cfg ServiceConfig
	flag.IntVar(&cfg.Port, "port", 8080, "Service port (default 8080)")
	flag.StringVar(&cfg.AlmaAPI, "alma", "https://api-na.hosted.exlibrisgroup.com", "ILS API URL")
	flag.StringVar(&cfg.AlmaKey, "almakey", "", "ILS API key")
	flag.StringVar(&cfg.ContentDMAPI, "cdm", "", "Digital collections API URL")
	flag.StringVar(&cfg.MappingsFile, "mappings", "./data/mappings.yml", "Availability mappings YAML file")
	flag.IntVar(&cfg.FragmentTimeout, "fragtimeout", 10, "Availability fragment timeout (seconds)")

	// Solr config
	flag.StringVar(&cfg.Solr.URL, "solr", "", "Solr URL for catalog lookups")
	flag.StringVar(&cfg.Solr.Core, "core", "blacklight-core", "Solr core for catalog lookups")

	// Article search API
	flag.StringVar(&cfg.Primo.URL, "primo", "", "Article search API URL")
	flag.StringVar(&cfg.Primo.APIKey, "primokey", "", "Article search API key")
	flag.Float64Var(&cfg.Primo.RPS, "primorps", 5, "Article search API request rate limit (per second)")
	flag.Parse()

	if cfg.AlmaAPI == "" || cfg.AlmaKey == "" {
		log.Fatal("alma and almakey params are required")
	} else {
		log.Printf("ILS API endpoint: %s", cfg.AlmaAPI)
	}
	if cfg.Solr.URL == "" || cfg.Solr.Core == "" {
		log.Fatal("solr and core params are required")
	} else {
		log.Printf("Solr endpoint: %s/%s", cfg.Solr.URL, cfg.Solr.Core)
	}
	if cfg.Primo.URL == "" {
		log.Fatal("primo param is required")
	}

	return &cfg
}

// mappingsFile is the externally supplied lookup data: display names,
// process type labels, ordering and exclusion tables, cache lifetimes
type mappingsFile struct {
	ProcessTypes         map[string]string            `yaml:"process_types"`
	LoanProcessTypes     []string                     `yaml:"loan_process_types"`
	Libraries            map[string]string            `yaml:"libraries"`
	Locations            map[string]map[string]string `yaml:"locations"`
	PinnedLibraries      []string                     `yaml:"pinned_libraries"`
	UnavailableLibraries []string                     `yaml:"unavailable_libraries"`
	UnavailableLocations []string                     `yaml:"unavailable_locations"`
	ReserveLocations     []string                     `yaml:"reserve_locations"`
	BoundJournalPolicy   string                       `yaml:"bound_journal_policy"`
	UnwantedLocations    string                       `yaml:"unwanted_locations"`
	FragmentHostPattern  string                       `yaml:"fragment_host_pattern"`
	CacheLives           map[string]string            `yaml:"cache_lives"`
}

func loadMappings(path string) (*mappingsFile, error) {
	log.Printf("Load availability mappings from %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read mappings file: %s", err.Error())
	}
	var mappings mappingsFile
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("unable to parse mappings file: %s", err.Error())
	}
	return &mappings, nil
}

func (m *mappingsFile) availabilityConfig() *AvailabilityConfig {
	loanTypes := m.LoanProcessTypes
	if len(loanTypes) == 0 {
		loanTypes = []string{"LOAN"}
	}
	return &AvailabilityConfig{
		ProcessTypes:         m.ProcessTypes,
		LoanProcessTypes:     loanTypes,
		UnavailableLibraries: m.UnavailableLibraries,
		UnavailableLocations: m.UnavailableLocations,
		ReserveLocations:     m.ReserveLocations,
		BoundJournalPolicy:   m.BoundJournalPolicy,
	}
}

func (m *mappingsFile) holdingsConfig() (*HoldingsConfig, error) {
	pattern := m.UnwantedLocations
	if pattern == "" {
		pattern = `techserv|UNASSIGNED|intref`
	}
	unwanted, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad unwanted_locations pattern %q: %s", pattern, err.Error())
	}
	return &HoldingsConfig{
		Libraries:         m.Libraries,
		Locations:         m.Locations,
		PinnedLibraries:   m.PinnedLibraries,
		UnwantedLocations: unwanted,
	}, nil
}

func (m *mappingsFile) fragmentConfig(timeoutSec int) (FragmentConfig, error) {
	cfg := FragmentConfig{Timeout: time.Duration(timeoutSec) * time.Second}
	if m.FragmentHostPattern != "" {
		allowed, err := regexp.Compile(m.FragmentHostPattern)
		if err != nil {
			return cfg, fmt.Errorf("bad fragment_host_pattern %q: %s", m.FragmentHostPattern, err.Error())
		}
		cfg.AllowedHosts = allowed
	}
	return cfg, nil
}
