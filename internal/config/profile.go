package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Built-in profile names.
const (
	ProfileDefault      = "default"
	ProfilePerformance  = "performance"
	ProfileCreditSaving = "credit_saving"
)

// Verbosity controls the length of the final answer.
type Verbosity string

const (
	VerbosityBrief    Verbosity = "brief"
	VerbosityStandard Verbosity = "standard"
	VerbosityDetailed Verbosity = "detailed"
)

// Search depths understood by the search backends.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Profile is a named preset resolved when a pipeline is built.
type Profile struct {
	Name               string        `yaml:"-" json:"name"`
	Model              string        `yaml:"model" json:"model"`
	Temperature        float64       `yaml:"temperature" json:"temperature"`
	MaxSearchQueries   int           `yaml:"max_search_queries" json:"max_search_queries"`
	MaxResultsPerQuery int           `yaml:"max_results_per_query" json:"max_results_per_query"`
	MaxSearchResults   int           `yaml:"max_search_results" json:"max_search_results"`
	MaxPagesToScrape   int           `yaml:"max_pages_to_scrape" json:"max_pages_to_scrape"`
	RetryMaxAttempts   int           `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	CallTimeout        time.Duration `yaml:"call_timeout" json:"call_timeout"`
	Concurrency        int           `yaml:"concurrency" json:"concurrency"`
	Verbosity          Verbosity     `yaml:"verbosity" json:"verbosity"`
	ContentMaxLength   int           `yaml:"content_max_length" json:"content_max_length"`
	AddShoppingTerms   bool          `yaml:"add_shopping_terms" json:"add_shopping_terms"`
	LLMFactExtraction  bool          `yaml:"llm_fact_extraction" json:"llm_fact_extraction"`
	SearchDepth        string        `yaml:"search_depth" json:"search_depth"`
	PreferredDomains   []string      `yaml:"preferred_domains" json:"preferred_domains"`

	// Prompt overrides; empty keeps the built-in prompt.
	AnalysisPrompt string `yaml:"analysis_prompt" json:"analysis_prompt,omitempty"`
	SystemPrompt   string `yaml:"system_prompt" json:"system_prompt,omitempty"`
}

// UserQueryPlaceholder marks where an analysis prompt override takes the question.
const UserQueryPlaceholder = "{user_query}"

// PreferredShoppingDomains are Korean shopping sites favored when picking pages to scrape.
var PreferredShoppingDomains = []string{
	"naver.com", "coupang.com", "gmarket.com", "11st.co.kr", "auction.co.kr",
	"ssg.com", "lotte.com", "wemakeprice.com", "tmon.co.kr", "interpark.com",
	"yes24.com", "aladin.co.kr", "musinsa.com", "oliveyoung.co.kr", "hmall.com",
}

// BuiltinProfiles returns fresh copies of the built-in presets.
func BuiltinProfiles() map[string]Profile {
	base := Profile{
		Model:            "gpt-4o-mini",
		Temperature:      0.3,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Second,
		CallTimeout:      30 * time.Second,
		Verbosity:        VerbosityStandard,
		AddShoppingTerms: true,
	}

	def := base
	def.Name = ProfileDefault
	def.MaxSearchQueries = 2
	def.MaxResultsPerQuery = 2
	def.MaxSearchResults = 3
	def.MaxPagesToScrape = 1
	def.Concurrency = 1
	def.ContentMaxLength = 1500
	def.SearchDepth = DepthBasic
	def.PreferredDomains = append([]string(nil), PreferredShoppingDomains...)

	perf := base
	perf.Name = ProfilePerformance
	perf.MaxSearchQueries = 3
	perf.MaxResultsPerQuery = 5
	perf.MaxSearchResults = 10
	perf.MaxPagesToScrape = 5
	perf.Concurrency = 3
	perf.ContentMaxLength = 3000
	perf.SearchDepth = DepthAdvanced
	perf.Verbosity = VerbosityDetailed
	perf.LLMFactExtraction = true
	perf.PreferredDomains = append([]string(nil), PreferredShoppingDomains...)

	saving := base
	saving.Name = ProfileCreditSaving
	saving.MaxSearchQueries = 1
	saving.MaxResultsPerQuery = 1
	saving.MaxSearchResults = 2
	saving.MaxPagesToScrape = 1
	saving.Concurrency = 1
	saving.ContentMaxLength = 1000
	saving.SearchDepth = DepthBasic
	saving.Verbosity = VerbosityBrief
	saving.RetryMaxAttempts = 2
	saving.PreferredDomains = append([]string(nil), PreferredShoppingDomains...)

	return map[string]Profile{
		ProfileDefault:      def,
		ProfilePerformance:  perf,
		ProfileCreditSaving: saving,
	}
}

// Validate checks field ranges and enum values.
func (p Profile) Validate() error {
	switch {
	case p.Model == "":
		return eris.Errorf("profile %s: model is required", p.Name)
	case p.Temperature < 0 || p.Temperature > 2:
		return eris.Errorf("profile %s: temperature must be between 0 and 2", p.Name)
	case p.MaxSearchQueries < 1 || p.MaxSearchQueries > 8:
		return eris.Errorf("profile %s: max_search_queries must be between 1 and 8", p.Name)
	case p.MaxResultsPerQuery < 1:
		return eris.Errorf("profile %s: max_results_per_query must be >= 1", p.Name)
	case p.MaxSearchResults < 1:
		return eris.Errorf("profile %s: max_search_results must be >= 1", p.Name)
	case p.MaxPagesToScrape < 0:
		return eris.Errorf("profile %s: max_pages_to_scrape must be >= 0", p.Name)
	case p.RetryMaxAttempts < 1 || p.RetryMaxAttempts > 10:
		return eris.Errorf("profile %s: retry_max_attempts must be between 1 and 10", p.Name)
	case p.RetryBaseDelay < 0:
		return eris.Errorf("profile %s: retry_base_delay must be >= 0", p.Name)
	case p.CallTimeout <= 0:
		return eris.Errorf("profile %s: call_timeout must be > 0", p.Name)
	case p.Concurrency < 1 || p.Concurrency > 16:
		return eris.Errorf("profile %s: concurrency must be between 1 and 16", p.Name)
	case p.ContentMaxLength < 100:
		return eris.Errorf("profile %s: content_max_length must be >= 100", p.Name)
	}

	if p.AnalysisPrompt != "" && !strings.Contains(p.AnalysisPrompt, UserQueryPlaceholder) {
		return eris.Errorf("profile %s: analysis_prompt must contain %s", p.Name, UserQueryPlaceholder)
	}

	switch p.Verbosity {
	case VerbosityBrief, VerbosityStandard, VerbosityDetailed:
	default:
		return eris.Errorf("profile %s: unknown verbosity %q", p.Name, p.Verbosity)
	}
	switch p.SearchDepth {
	case DepthBasic, DepthAdvanced:
	default:
		return eris.Errorf("profile %s: unknown search_depth %q", p.Name, p.SearchDepth)
	}
	return nil
}

// Profiles is a resolved set of named profiles.
type Profiles struct {
	byName      map[string]Profile
	defaultName string
}

// LoadProfiles returns the built-ins merged with the profiles in cfg.File, if any.
// A non-empty cfg.Model replaces the model of every built-in profile, so the
// presets follow the configured generator.
func LoadProfiles(cfg ProfilesConfig) (*Profiles, error) {
	builtins := BuiltinProfiles()
	if cfg.Model != "" {
		for name, p := range builtins {
			p.Model = cfg.Model
			builtins[name] = p
		}
	}

	ps := &Profiles{byName: make(map[string]Profile, len(builtins)), defaultName: cfg.Default}
	for name, p := range builtins {
		ps.byName[name] = p
	}
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read profile file %s", cfg.File)
		}
		loaded, err := parseProfiles(data, builtins)
		if err != nil {
			return nil, eris.Wrapf(err, "config: profile file %s", cfg.File)
		}
		for name, p := range loaded {
			ps.byName[name] = p
		}
	}
	if ps.defaultName == "" {
		ps.defaultName = ProfileDefault
	}
	if _, ok := ps.byName[ps.defaultName]; !ok {
		return nil, eris.Errorf("config: unknown default profile %q", ps.defaultName)
	}
	return ps, nil
}

// Get resolves a profile by name. An empty name selects the default profile.
func (ps *Profiles) Get(name string) (Profile, error) {
	if name == "" {
		name = ps.defaultName
	}
	p, ok := ps.byName[name]
	if !ok {
		return Profile{}, eris.Errorf("config: unknown profile %q (known: %v)", name, ps.Names())
	}
	p.PreferredDomains = append([]string(nil), p.PreferredDomains...)
	return p, nil
}

// Default returns the name of the default profile.
func (ps *Profiles) Default() string { return ps.defaultName }

// Names returns the sorted profile names.
func (ps *Profiles) Names() []string {
	names := make([]string, 0, len(ps.byName))
	for name := range ps.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// profileSpec is one entry of a profile file: the overrides plus the base they apply to.
type profileSpec struct {
	Base    string `yaml:"base"`
	Profile `yaml:",inline"`
}

// ParseProfiles decodes a profile file of the form
//
//	profiles:
//	  fast:
//	    base: credit_saving
//	    max_pages_to_scrape: 2
//
// Unknown keys are rejected. Keys a profile leaves out keep the value of its
// base, which must be a built-in profile (default "default"). analysis_prompt
// and system_prompt replace the analyze prompt and the answer system prompt.
func ParseProfiles(data []byte) (map[string]Profile, error) {
	return parseProfiles(data, BuiltinProfiles())
}

func parseProfiles(data []byte, builtins map[string]Profile) (map[string]Profile, error) {
	var file struct {
		Profiles map[string]yaml.Node `yaml:"profiles"`
	}
	if err := strictDecode(data, &file); err != nil {
		return nil, err
	}

	out := make(map[string]Profile, len(file.Profiles))
	for name, node := range file.Profiles {
		var head struct {
			Base string `yaml:"base"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, eris.Wrapf(err, "profile %s", name)
		}
		if head.Base == "" {
			head.Base = ProfileDefault
		}
		base, ok := builtins[head.Base]
		if !ok {
			return nil, eris.Errorf("profile %s: unknown base %q", name, head.Base)
		}

		raw, err := yaml.Marshal(&node)
		if err != nil {
			return nil, eris.Wrapf(err, "profile %s", name)
		}
		spec := profileSpec{Base: head.Base, Profile: base}
		if err := strictDecode(raw, &spec); err != nil {
			return nil, eris.Wrapf(err, "profile %s", name)
		}

		p := spec.Profile
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

func strictDecode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(err, "decode yaml")
	}
	return nil
}
