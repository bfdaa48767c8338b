// Package config loads stract's configuration from hardcoded defaults,
// an optional YAML file, and STRACT_* environment overrides, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CollectorConfig tunes the bucket collector's de-duplication penalties,
// mirroring the dedup axes in the ranking design.
type CollectorConfig struct {
	SitePenalty         float64 `yaml:"site_penalty" json:"site_penalty"`
	TitlePenalty        float64 `yaml:"title_penalty" json:"title_penalty"`
	UrlPenalty          float64 `yaml:"url_penalty" json:"url_penalty"`
	UrlWithoutTldPenalty float64 `yaml:"url_without_tld_penalty" json:"url_without_tld_penalty"`
	MaxDocsConsidered   int     `yaml:"max_docs_considered" json:"max_docs_considered"`
}

// DefaultCollectorConfig returns the hard-coded defaults used when no
// request-scoped override is supplied.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		SitePenalty:          0.5,
		TitlePenalty:         0.5,
		UrlPenalty:           0.5,
		UrlWithoutTldPenalty: 0.5,
		MaxDocsConsidered:    20_000,
	}
}

// SnippetConfig tunes snippet generation.
type SnippetConfig struct {
	DesiredNumChars        int `yaml:"desired_num_chars" json:"desired_num_chars"`
	DeltaNumChars          int `yaml:"delta_num_chars" json:"delta_num_chars"`
	MinPassageWidth        int `yaml:"min_passage_width" json:"min_passage_width"`
	MinBodyLength          int `yaml:"min_body_length" json:"min_body_length"`
	MinBodyLengthHomepage  int `yaml:"min_body_length_homepage" json:"min_body_length_homepage"`
	MinDescriptionWords    int `yaml:"min_description_words" json:"min_description_words"`
	EmptyQuerySnippetWords int `yaml:"empty_query_snippet_words" json:"empty_query_snippet_words"`
	NumWordsForLangDetect  int `yaml:"num_words_for_lang_detection" json:"num_words_for_lang_detection"`
}

// DefaultSnippetConfig returns the hard-coded snippet generation defaults.
func DefaultSnippetConfig() SnippetConfig {
	return SnippetConfig{
		DesiredNumChars:        250,
		DeltaNumChars:          150,
		MinPassageWidth:        20,
		MinBodyLength:          20,
		MinBodyLengthHomepage:  5,
		MinDescriptionWords:    10,
		EmptyQuerySnippetWords: 50,
		NumWordsForLangDetect:  150,
	}
}

// IndexConfig tunes the postings store writer.
type IndexConfig struct {
	WriterBufferBytes int  `yaml:"writer_buffer_bytes" json:"writer_buffer_bytes"`
	SingleThread      bool `yaml:"single_thread" json:"single_thread"`
}

// DefaultIndexConfig returns the hard-coded writer defaults.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		WriterBufferBytes: 256 << 20,
		SingleThread:      true,
	}
}

// LiveIndexConfig tunes the live-index manager tick loop.
type LiveIndexConfig struct {
	TickInterval        time.Duration `yaml:"-" json:"-"`
	TickIntervalRaw     string        `yaml:"tick_interval" json:"tick_interval"`
	SegmentTTL          time.Duration `yaml:"-" json:"-"`
	SegmentTTLRaw       string        `yaml:"segment_ttl" json:"segment_ttl"`
	AutoCommitInterval  time.Duration `yaml:"-" json:"-"`
	AutoCommitRaw       string        `yaml:"auto_commit_interval" json:"auto_commit_interval"`
	ConsistencyFraction float64       `yaml:"consistency_fraction" json:"consistency_fraction"`
}

// DefaultLiveIndexConfig returns the hard-coded live index defaults.
func DefaultLiveIndexConfig() LiveIndexConfig {
	cfg := LiveIndexConfig{
		TickIntervalRaw:     "30s",
		SegmentTTLRaw:       "1d",
		AutoCommitRaw:       "15m",
		ConsistencyFraction: 0.5,
	}
	_ = cfg.resolveDurations()
	return cfg
}

func (c *LiveIndexConfig) resolveDurations() error {
	var err error
	if c.TickInterval, err = ParseDuration(c.TickIntervalRaw); err != nil {
		return fmt.Errorf("tick_interval: %w", err)
	}
	if c.SegmentTTL, err = ParseDuration(c.SegmentTTLRaw); err != nil {
		return fmt.Errorf("segment_ttl: %w", err)
	}
	if c.AutoCommitInterval, err = ParseDuration(c.AutoCommitRaw); err != nil {
		return fmt.Errorf("auto_commit_interval: %w", err)
	}
	return nil
}

// DHTConfig tunes the sharded Raft key-value cluster.
type DHTConfig struct {
	Shards                int           `yaml:"shards" json:"shards"`
	DataDir               string        `yaml:"data_dir" json:"data_dir"`
	ElectionTimeoutMinRaw string        `yaml:"election_timeout_min" json:"election_timeout_min"`
	ElectionTimeoutMaxRaw string        `yaml:"election_timeout_max" json:"election_timeout_max"`
	HeartbeatIntervalRaw  string        `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	ElectionTimeoutMin    time.Duration `yaml:"-" json:"-"`
	ElectionTimeoutMax    time.Duration `yaml:"-" json:"-"`
	HeartbeatInterval     time.Duration `yaml:"-" json:"-"`
}

// DefaultDHTConfig returns the hard-coded DHT defaults.
func DefaultDHTConfig() DHTConfig {
	cfg := DHTConfig{
		Shards:                8,
		DataDir:               "dht-data",
		ElectionTimeoutMinRaw: "1500ms",
		ElectionTimeoutMaxRaw: "3000ms",
		HeartbeatIntervalRaw:  "500ms",
	}
	_ = cfg.resolveDurations()
	return cfg
}

func (c *DHTConfig) resolveDurations() error {
	var err error
	if c.ElectionTimeoutMin, err = ParseDuration(c.ElectionTimeoutMinRaw); err != nil {
		return fmt.Errorf("election_timeout_min: %w", err)
	}
	if c.ElectionTimeoutMax, err = ParseDuration(c.ElectionTimeoutMaxRaw); err != nil {
		return fmt.Errorf("election_timeout_max: %w", err)
	}
	if c.HeartbeatInterval, err = ParseDuration(c.HeartbeatIntervalRaw); err != nil {
		return fmt.Errorf("heartbeat_interval: %w", err)
	}
	return nil
}

// ServerConfig configures the thin RPC/HTTP front end.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// DefaultServerConfig returns the hard-coded server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: "127.0.0.1:7700",
		LogLevel:   "info",
	}
}

// Config is the complete stract configuration.
type Config struct {
	Collector  CollectorConfig `yaml:"collector" json:"collector"`
	Snippet    SnippetConfig   `yaml:"snippet" json:"snippet"`
	Index      IndexConfig     `yaml:"index" json:"index"`
	LiveIndex  LiveIndexConfig `yaml:"live_index" json:"live_index"`
	DHT        DHTConfig       `yaml:"dht" json:"dht"`
	Server     ServerConfig    `yaml:"server" json:"server"`
}

// NewConfig returns a Config populated with hard-coded defaults.
func NewConfig() *Config {
	return &Config{
		Collector: DefaultCollectorConfig(),
		Snippet:   DefaultSnippetConfig(),
		Index:     DefaultIndexConfig(),
		LiveIndex: DefaultLiveIndexConfig(),
		DHT:       DefaultDHTConfig(),
		Server:    DefaultServerConfig(),
	}
}

// Load builds a Config from hardcoded defaults, an optional YAML file at
// path, and STRACT_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.resolveDurations(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

func (c *Config) mergeWith(other *Config) {
	if other.Collector.SitePenalty != 0 {
		c.Collector.SitePenalty = other.Collector.SitePenalty
	}
	if other.Collector.TitlePenalty != 0 {
		c.Collector.TitlePenalty = other.Collector.TitlePenalty
	}
	if other.Collector.UrlPenalty != 0 {
		c.Collector.UrlPenalty = other.Collector.UrlPenalty
	}
	if other.Collector.UrlWithoutTldPenalty != 0 {
		c.Collector.UrlWithoutTldPenalty = other.Collector.UrlWithoutTldPenalty
	}
	if other.Collector.MaxDocsConsidered != 0 {
		c.Collector.MaxDocsConsidered = other.Collector.MaxDocsConsidered
	}

	if other.Snippet.DesiredNumChars != 0 {
		c.Snippet.DesiredNumChars = other.Snippet.DesiredNumChars
	}
	if other.Snippet.DeltaNumChars != 0 {
		c.Snippet.DeltaNumChars = other.Snippet.DeltaNumChars
	}
	if other.Snippet.MinPassageWidth != 0 {
		c.Snippet.MinPassageWidth = other.Snippet.MinPassageWidth
	}
	if other.Snippet.MinBodyLength != 0 {
		c.Snippet.MinBodyLength = other.Snippet.MinBodyLength
	}
	if other.Snippet.MinBodyLengthHomepage != 0 {
		c.Snippet.MinBodyLengthHomepage = other.Snippet.MinBodyLengthHomepage
	}
	if other.Snippet.MinDescriptionWords != 0 {
		c.Snippet.MinDescriptionWords = other.Snippet.MinDescriptionWords
	}
	if other.Snippet.EmptyQuerySnippetWords != 0 {
		c.Snippet.EmptyQuerySnippetWords = other.Snippet.EmptyQuerySnippetWords
	}
	if other.Snippet.NumWordsForLangDetect != 0 {
		c.Snippet.NumWordsForLangDetect = other.Snippet.NumWordsForLangDetect
	}

	if other.Index.WriterBufferBytes != 0 {
		c.Index.WriterBufferBytes = other.Index.WriterBufferBytes
	}

	if other.LiveIndex.TickIntervalRaw != "" {
		c.LiveIndex.TickIntervalRaw = other.LiveIndex.TickIntervalRaw
	}
	if other.LiveIndex.SegmentTTLRaw != "" {
		c.LiveIndex.SegmentTTLRaw = other.LiveIndex.SegmentTTLRaw
	}
	if other.LiveIndex.AutoCommitRaw != "" {
		c.LiveIndex.AutoCommitRaw = other.LiveIndex.AutoCommitRaw
	}
	if other.LiveIndex.ConsistencyFraction != 0 {
		c.LiveIndex.ConsistencyFraction = other.LiveIndex.ConsistencyFraction
	}

	if other.DHT.Shards != 0 {
		c.DHT.Shards = other.DHT.Shards
	}
	if other.DHT.DataDir != "" {
		c.DHT.DataDir = other.DHT.DataDir
	}
	if other.DHT.ElectionTimeoutMinRaw != "" {
		c.DHT.ElectionTimeoutMinRaw = other.DHT.ElectionTimeoutMinRaw
	}
	if other.DHT.ElectionTimeoutMaxRaw != "" {
		c.DHT.ElectionTimeoutMaxRaw = other.DHT.ElectionTimeoutMaxRaw
	}
	if other.DHT.HeartbeatIntervalRaw != "" {
		c.DHT.HeartbeatIntervalRaw = other.DHT.HeartbeatIntervalRaw
	}

	if other.Server.ListenAddr != "" {
		c.Server.ListenAddr = other.Server.ListenAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

func (c *Config) resolveDurations() error {
	if err := c.LiveIndex.resolveDurations(); err != nil {
		return err
	}
	return c.DHT.resolveDurations()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STRACT_DHT_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DHT.Shards = n
		}
	}
	if v := os.Getenv("STRACT_DHT_DATA_DIR"); v != "" {
		c.DHT.DataDir = v
	}
	if v := os.Getenv("STRACT_SERVER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("STRACT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("STRACT_COLLECTOR_MAX_DOCS_CONSIDERED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Collector.MaxDocsConsidered = n
		}
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Collector.MaxDocsConsidered <= 0 {
		return fmt.Errorf("collector.max_docs_considered must be positive, got %d", c.Collector.MaxDocsConsidered)
	}
	if c.DHT.Shards <= 0 {
		return fmt.Errorf("dht.shards must be positive, got %d", c.DHT.Shards)
	}
	if c.LiveIndex.ConsistencyFraction < 0 || c.LiveIndex.ConsistencyFraction > 1 {
		return fmt.Errorf("live_index.consistency_fraction must be in [0,1], got %f", c.LiveIndex.ConsistencyFraction)
	}
	return nil
}

// ParseDuration parses human-readable durations like "30s", "5m", "2h",
// and additionally "1d" (days), which time.ParseDuration does not
// understand natively.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		numPart := strings.TrimSuffix(s, "d")
		days, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
