package bpe

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	HFDefaultRevision = "main"
	HFDefaultTimeout  = 30 * time.Second
	HFMaxRetries      = 3
	HFRetryDelay      = time.Second
	// HFMaxRetryAfterDelay caps the delay taken from Retry-After headers so a
	// misconfigured server cannot stall the client for arbitrary lengths.
	HFMaxRetryAfterDelay = 5 * time.Minute

	// DefaultMaxFileSize is the per-file download cap (50MB). GPT-2 style
	// vocab and merges files are around one megabyte each.
	DefaultMaxFileSize = 50 * 1024 * 1024

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleTimeout         = 90 * time.Second
)

var (
	HFHubBaseURL = "https://huggingface.co" // Variable to allow testing with mock server

	// Shared HTTP client for hub downloads with connection pooling
	hfHTTPClient *http.Client
	hfClientOnce sync.Once

	// ErrCacheNotFound is returned when a requested cache file does not exist
	ErrCacheNotFound = errors.New("cache file not found")
)

// HFConfig holds Hugging Face hub specific configuration.
type HFConfig struct {
	Token       string
	Revision    string
	CacheDir    string
	Timeout     time.Duration
	MaxRetries  int
	OfflineMode bool
	// CacheTTL specifies how long cached files are considered valid (0 = forever)
	CacheTTL time.Duration
	// MaxFileSize is the maximum allowed size per downloaded file in bytes.
	// Zero falls back to the BPE_MAX_FILE_SIZE environment variable, then
	// DefaultMaxFileSize.
	MaxFileSize int64
}

func defaultHFConfig() *HFConfig {
	return &HFConfig{
		Revision:   HFDefaultRevision,
		Timeout:    HFDefaultTimeout,
		MaxRetries: HFMaxRetries,
	}
}

// initHFHTTPClient initializes the shared HTTP client. Pooling settings are
// fixed per process lifetime via sync.Once.
func initHFHTTPClient() {
	hfClientOnce.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          defaultMaxIdleConns,
			MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		hfHTTPClient = &http.Client{
			Transport: transport,
			// Per-request timeouts come from the request context
			Timeout: 0,
		}
	})
}

func getHFHTTPClient() *http.Client {
	initHFHTTPClient()
	return hfHTTPClient
}

// FromHuggingFace loads a tokenizer from the Hugging Face hub using the model
// identifier, e.g. "gpt2" or "openai-community/gpt2". It fetches the model's
// vocab.json and merges.txt files.
//
// By default it loads from the "main" revision; use WithHFRevision for a
// branch, tag or commit hash. For private or gated models set the HF_TOKEN
// environment variable or use WithHFToken.
//
// Both files are cached locally for faster subsequent loads. The cache
// location is platform-specific and can be overridden with WithHFCacheDir.
//
// Example:
//
//	tokenizer, err := FromHuggingFace("gpt2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tokenizer.Close()
func FromHuggingFace(modelID string, opts ...TokenizerOption) (*Tokenizer, error) {
	if modelID == "" {
		return nil, errors.New("model ID cannot be empty")
	}
	if err := validateModelID(modelID); err != nil {
		return nil, errors.Wrapf(err, "invalid model ID: %s", modelID)
	}

	cfg, err := applyHFOptions(opts)
	if err != nil {
		return nil, err
	}

	vocabData, err := fetchHFFile(modelID, DefaultVocabFile, cfg)
	if err != nil {
		return nil, err
	}
	mergesData, err := fetchHFFile(modelID, DefaultMergesFile, cfg)
	if err != nil {
		return nil, err
	}
	return FromBytes(vocabData, mergesData, opts...)
}

// DownloadAndCacheModel pre-fetches the model's vocab.json and merges.txt
// into the local cache without constructing a tokenizer.
func DownloadAndCacheModel(modelID string, opts ...TokenizerOption) error {
	if modelID == "" {
		return errors.New("model ID cannot be empty")
	}
	if err := validateModelID(modelID); err != nil {
		return errors.Wrapf(err, "invalid model ID: %s", modelID)
	}
	cfg, err := applyHFOptions(opts)
	if err != nil {
		return err
	}
	for _, file := range []string{DefaultVocabFile, DefaultMergesFile} {
		if _, err := fetchHFFile(modelID, file, cfg); err != nil {
			return err
		}
	}
	return nil
}

// applyHFOptions runs the tokenizer options against a scratch tokenizer and
// returns the resulting hub configuration with defaults and env fallbacks.
func applyHFOptions(opts []TokenizerOption) (*HFConfig, error) {
	scratch := &Tokenizer{hfConfig: defaultHFConfig()}
	for _, opt := range opts {
		if err := opt(scratch); err != nil {
			return nil, errors.Wrap(err, "failed to apply tokenizer option")
		}
	}
	cfg := scratch.hfConfig
	if cfg.Revision == "" {
		cfg.Revision = HFDefaultRevision
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = HFDefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = HFMaxRetries
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("HF_TOKEN")
	}
	return cfg, nil
}

// fetchHFFile resolves one model file: cache first, then download.
func fetchHFFile(modelID, fileName string, cfg *HFConfig) ([]byte, error) {
	cachedPath := getHFCachePath(cfg.CacheDir, modelID, cfg.Revision, fileName)
	if data, err := loadFromCacheWithValidation(cachedPath, fileName, cfg.CacheTTL); err == nil {
		return data, nil
	}

	if cfg.OfflineMode {
		return nil, errors.Errorf("offline mode enabled but %s for %s not found in cache", fileName, modelID)
	}

	data, err := downloadFileFromHF(modelID, fileName, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download %s from Hugging Face", fileName)
	}
	if err := saveToHFCache(cachedPath, data); err != nil {
		log.Printf("[WARNING] Failed to cache %s for %s: %v\n", fileName, modelID, err)
	}
	return data, nil
}

// WithHFToken sets the Hugging Face API token for authentication
func WithHFToken(token string) TokenizerOption {
	return func(t *Tokenizer) error {
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.Token = token
		return nil
	}
}

// WithHFRevision sets the model revision (branch, tag, or commit hash)
func WithHFRevision(revision string) TokenizerOption {
	return func(t *Tokenizer) error {
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.Revision = revision
		return nil
	}
}

// WithHFCacheDir sets a custom cache directory for downloaded model files
func WithHFCacheDir(dir string) TokenizerOption {
	return func(t *Tokenizer) error {
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.CacheDir = dir
		return nil
	}
}

// WithHFTimeout sets the download timeout for hub requests
func WithHFTimeout(timeout time.Duration) TokenizerOption {
	return func(t *Tokenizer) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.Timeout = timeout
		return nil
	}
}

// WithHFOfflineMode forces the tokenizer to only use cached files
func WithHFOfflineMode(offline bool) TokenizerOption {
	return func(t *Tokenizer) error {
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.OfflineMode = offline
		return nil
	}
}

// WithHFCacheTTL sets the cache time-to-live for downloaded model files
func WithHFCacheTTL(ttl time.Duration) TokenizerOption {
	return func(t *Tokenizer) error {
		if ttl < 0 {
			return errors.New("cache TTL must be non-negative")
		}
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.CacheTTL = ttl
		return nil
	}
}

// WithHFMaxFileSize sets the maximum allowed size per downloaded file in bytes
func WithHFMaxFileSize(maxSize int64) TokenizerOption {
	return func(t *Tokenizer) error {
		if maxSize < 0 {
			return errors.New("max file size must be non-negative")
		}
		if t.hfConfig == nil {
			t.hfConfig = &HFConfig{}
		}
		t.hfConfig.MaxFileSize = maxSize
		return nil
	}
}

// downloadFileFromHF downloads one model file from the hub with retries.
func downloadFileFromHF(modelID, fileName string, cfg *HFConfig) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", HFHubBaseURL, modelID, cfg.Revision, fileName)

	var lastErr error
	var retryAfterDuration time.Duration
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			var delay time.Duration
			if retryAfterDuration > 0 {
				delay = retryAfterDuration
				retryAfterDuration = 0
			} else {
				// Exponential backoff with 0-25% jitter to avoid thundering herd
				baseDelay := HFRetryDelay * time.Duration(1<<uint(attempt-1))
				jitter := time.Duration(rand.Float64() * 0.25 * float64(baseDelay))
				delay = baseDelay + jitter
			}
			if os.Getenv("DEBUG") != "" {
				log.Printf("[DEBUG] Retry attempt %d for %s: waiting %v", attempt, url, delay)
			}
			time.Sleep(delay)
		}

		data, resp, err := downloadWithResponse(url, fileName, cfg)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				retryAfterDuration = parseRetryAfter(retryAfter)
			}
		}
		if isNonRetryableError(err) {
			break
		}
	}
	return nil, lastErr
}

// downloadWithResponse performs a single download attempt. The response is
// returned alongside the data so the caller can inspect rate-limit headers.
func downloadWithResponse(url, fileName string, cfg *HFConfig) ([]byte, *http.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "bpe-tokenizer/"+Version)
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := getHFHTTPClient().Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusUnauthorized:
		return nil, resp, errors.New("authentication required: please set HF_TOKEN environment variable or use WithHFToken()")
	case http.StatusForbidden:
		return nil, resp, errors.New("access forbidden: token may be invalid or model may be gated")
	case http.StatusNotFound:
		return nil, resp, errors.Errorf("model or %s not found", fileName)
	case http.StatusTooManyRequests:
		return nil, resp, errors.New("rate limited: too many requests")
	default:
		return nil, resp, errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	maxSize := cfg.MaxFileSize
	if maxSize == 0 {
		maxSize = getEnvInt64("BPE_MAX_FILE_SIZE", DefaultMaxFileSize)
	}
	if maxSize > 0 && resp.ContentLength > maxSize {
		return nil, resp, errors.Errorf("file too large: %d bytes exceeds maximum %d bytes", resp.ContentLength, maxSize)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, errors.Wrap(err, "failed to read response")
	}
	if err := validateHFFile(fileName, data); err != nil {
		return nil, resp, err
	}
	return data, resp, nil
}

// validateHFFile sanity-checks a downloaded file before it hits the cache.
// vocab.json must be a JSON object; merges.txt must parse as merge rules.
func validateHFFile(fileName string, data []byte) error {
	switch fileName {
	case DefaultVocabFile:
		var validateJSON map[string]interface{}
		if err := json.Unmarshal(data, &validateJSON); err != nil {
			return errors.Wrap(err, "invalid vocab.json format")
		}
	case DefaultMergesFile:
		if _, err := parseMerges(data); err != nil {
			return errors.Wrap(err, "invalid merges.txt format")
		}
	}
	return nil
}

// validateModelID checks if the model ID is valid
func validateModelID(modelID string) error {
	// Empty model ID is handled separately in FromHuggingFace
	if modelID == "" {
		return nil
	}

	// Must be either "repo_name" or "owner/repo_name"
	parts := strings.Split(modelID, "/")
	if len(parts) > 2 {
		return errors.New("model ID must be in format 'owner/repo_name' or just 'repo_name'")
	}
	if len(parts) == 2 {
		owner := parts[0]
		if owner == "" {
			return errors.New("owner cannot be empty")
		}
		if len(owner) > 96 {
			return errors.New("owner cannot exceed 96 characters")
		}
		if !isValidRepoName(owner) {
			return errors.New("owner contains invalid characters (must match [\\w\\-.]{1,96})")
		}
	}

	repoName := parts[len(parts)-1]
	if repoName == "" {
		return errors.New("repo_name cannot be empty")
	}
	if len(repoName) > 96 {
		return errors.Errorf("repo_name cannot exceed 96 characters (got %d)", len(repoName))
	}
	if !isValidRepoName(repoName) {
		return errors.New("repo_name contains invalid characters (must match [\\w\\-.]{1,96})")
	}
	return nil
}

// isValidRepoName checks if a repo/owner name matches the hub's [\w\-.]{1,96} pattern
func isValidRepoName(name string) bool {
	if len(name) == 0 || len(name) > 96 {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

// getHFCachePath returns the cache path for one model file
func getHFCachePath(customCacheDir, modelID, revision, fileName string) string {
	var cacheDir string
	if customCacheDir != "" {
		cacheDir = customCacheDir
	} else {
		cacheDir = getHFCacheDir()
	}

	// Sanitize model ID for filesystem
	sanitizedModelID := strings.ReplaceAll(modelID, "/", "--")

	return filepath.Join(cacheDir, "models", sanitizedModelID, revision, fileName)
}

// getHFCacheDir returns the default hub cache directory
func getHFCacheDir() string {
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(hfHome, "bpe-tokenizer")
	}
	return filepath.Join(getCacheDir(), "hf")
}

// saveToHFCache saves a downloaded file to the cache with an atomic write
func saveToHFCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}
	tempPath := path + ".tmp" + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write cache file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath) // Clean up on failure
		return errors.Wrap(err, "failed to save cache file")
	}
	return nil
}

// loadFromCacheWithValidation loads a model file from cache with optional TTL validation
func loadFromCacheWithValidation(path, fileName string, ttl time.Duration) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheNotFound
		}
		return nil, errors.Wrap(err, "failed to stat cache file")
	}
	if info.IsDir() {
		return nil, errors.New("cache path is a directory")
	}
	if ttl > 0 && time.Since(info.ModTime()) > ttl {
		return nil, errors.New("cache expired")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cache file")
	}
	if err := validateHFFile(fileName, data); err != nil {
		return nil, errors.Wrap(err, "invalid cached file")
	}
	return data, nil
}

// isNonRetryableError checks if an error should not be retried
func isNonRetryableError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "authentication required") ||
		strings.Contains(errStr, "access forbidden") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "invalid")
}

// parseRetryAfter parses a Retry-After header value: either a delay in
// seconds or an HTTP date. The result is capped at HFMaxRetryAfterDelay.
func parseRetryAfter(value string) time.Duration {
	var duration time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		duration = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(value); err == nil {
		duration = time.Until(t)
		if duration < 0 {
			return 0
		}
	} else {
		// Unparseable, fall back to exponential backoff
		return 0
	}
	if duration > HFMaxRetryAfterDelay {
		return HFMaxRetryAfterDelay
	}
	return duration
}

// GetHFCacheInfo returns information about the local cache for a model
func GetHFCacheInfo(modelID string) (map[string]interface{}, error) {
	info := make(map[string]interface{})
	info["model_id"] = modelID

	vocabPath := getHFCachePath("", modelID, HFDefaultRevision, DefaultVocabFile)
	mergesPath := getHFCachePath("", modelID, HFDefaultRevision, DefaultMergesFile)
	info["vocab_cache_path"] = vocabPath
	info["merges_cache_path"] = mergesPath
	info["is_cached"] = fileExists(vocabPath) && fileExists(mergesPath)

	if fileExists(vocabPath) {
		if stat, err := os.Stat(vocabPath); err == nil {
			info["vocab_size_bytes"] = stat.Size()
			info["cache_modified"] = stat.ModTime()
		}
	}
	return info, nil
}

// ClearHFModelCache clears the cached files for a specific model
func ClearHFModelCache(modelID string) error {
	cacheDir := getHFCacheDir()
	sanitizedModelID := strings.ReplaceAll(modelID, "/", "--")
	modelCacheDir := filepath.Join(cacheDir, "models", sanitizedModelID)

	if _, err := os.Stat(modelCacheDir); os.IsNotExist(err) {
		return nil // Already doesn't exist
	}
	return os.RemoveAll(modelCacheDir)
}

// ClearHFCache clears all cached model files
func ClearHFCache() error {
	modelsDir := filepath.Join(getHFCacheDir(), "models")
	if _, err := os.Stat(modelsDir); os.IsNotExist(err) {
		return nil // Already doesn't exist
	}
	return os.RemoveAll(modelsDir)
}

// ClearHFCachePattern clears cache entries whose model ID matches a glob
// pattern, e.g. "gpt2-*" or "openai-community/*". Patterns containing ".."
// or absolute paths are rejected. Returns the number of entries cleared.
func ClearHFCachePattern(pattern string) (int, error) {
	if strings.Contains(pattern, "..") || filepath.IsAbs(pattern) {
		return 0, errors.New("invalid pattern: directory traversal and absolute paths not allowed")
	}

	modelsDir := filepath.Join(getHFCacheDir(), "models")
	if _, err := os.Stat(modelsDir); os.IsNotExist(err) {
		return 0, nil
	}
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read cache directory")
	}

	cleared := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Convert sanitized directory name back to model ID (-- → /)
		modelID := strings.ReplaceAll(entry.Name(), "--", "/")
		matched, err := filepath.Match(pattern, modelID)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "invalid pattern for model %s", modelID))
			continue
		}
		if matched {
			if err := os.RemoveAll(filepath.Join(modelsDir, entry.Name())); err != nil {
				errs = append(errs, errors.Wrapf(err, "failed to clear cache for %s", modelID))
			} else {
				cleared++
			}
		}
	}
	if len(errs) > 0 {
		return cleared, errors.Errorf("cleared %d entries with %d errors: %v", cleared, len(errs), errs)
	}
	return cleared, nil
}

// getEnvInt64 retrieves an int64 value from an environment variable
func getEnvInt64(key string, defaultValue int64) int64 {
	envVal := os.Getenv(key)
	if envVal == "" {
		return defaultValue
	}
	val, err := strconv.ParseInt(envVal, 10, 64)
	if err != nil {
		log.Printf("[WARNING] Invalid integer value for %s: '%s' (error: %v), using default: %v\n",
			key, envVal, err, defaultValue)
		return defaultValue
	}
	if val <= 0 {
		log.Printf("[WARNING] Non-positive value for %s: %v, using default: %v\n",
			key, val, defaultValue)
		return defaultValue
	}
	return val
}
