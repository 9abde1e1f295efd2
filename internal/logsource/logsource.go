// Package logsource fetches log records for evaluation and normalizes them
// into models.LogRecord.
package logsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/models"
	"github.com/good-yellow-bee/logalert/pkg/buildinfo"
)

// DefaultTimeout bounds one fetch.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps the response body read from the log source.
const maxBodySize = 32 << 20

// Source returns the current batch of log records.
type Source interface {
	Fetch(ctx context.Context) ([]models.LogRecord, error)
}

// HTTPConfig holds HTTP source configuration.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// Validate validates the HTTP source configuration.
func (c *HTTPConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("log source URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("log source URL must use http or https")
	}
	return nil
}

// HTTPSource GETs a JSON document of log records.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

// NewHTTPSource creates an HTTP log source.
func NewHTTPSource(config HTTPConfig) (*HTTPSource, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log source config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &HTTPSource{
		url: config.URL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		now: time.Now,
		log: logger.WithComponent("logsource"),
	}, nil
}

// URL returns the source URL.
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch retrieves and normalizes the current records.
func (s *HTTPSource) Fetch(ctx context.Context) ([]models.LogRecord, error) {
	records, err := s.fetch(ctx)
	if err != nil {
		metrics.LogFetchesTotal.WithLabelValues("failure").Inc()
		s.log.Warn().Err(err).Str("url", s.url).Msg("log fetch failed")
		return nil, err
	}

	metrics.LogFetchesTotal.WithLabelValues("success").Inc()
	metrics.LogRecordsFetched.Add(float64(len(records)))
	s.log.Debug().Int("records", len(records)).Msg("logs fetched")
	return records, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]models.LogRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch logs: status %d", resp.StatusCode)
	}

	return Decode(io.LimitReader(resp.Body, maxBodySize), s.now())
}

// FileSource reads records from a JSON file on every fetch.
type FileSource struct {
	path string
	now  func() time.Time
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// Fetch reads and normalizes the file.
func (s *FileSource) Fetch(ctx context.Context) ([]models.LogRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logs file: %w", err)
	}
	defer f.Close()

	return Decode(f, s.now())
}

// Decode parses a bare JSON array of records, or an object carrying the
// array under "logs" or "data". Any other shape yields no records.
func Decode(r io.Reader, now time.Time) ([]models.LogRecord, error) {
	var doc any
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode logs: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if logs, ok := v["logs"]; ok && logs != nil {
			items, _ = logs.([]any)
		} else {
			items, _ = v["data"].([]any)
		}
	}

	records := make([]models.LogRecord, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, Normalize(fields, now))
	}
	return records, nil
}

// timestampLayouts are tried in order. Layouts without an offset are read
// as UTC, which is what Python's datetime.utcnow().isoformat() produces.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO 8601 timestamp in any of timestampLayouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize converts one decoded JSON object into a LogRecord. Missing
// severity becomes INFO and missing source "unknown". A missing or
// non-string timestamp becomes now; a string that does not parse becomes
// the zero time, which lies outside every rule window. A missing id is
// derived from source and the raw timestamp.
func Normalize(fields map[string]any, now time.Time) models.LogRecord {
	source := "unknown"
	if v, ok := fields["source"]; ok && v != nil {
		source = stringify(v)
	}

	severity := models.SeverityInfo
	if v, ok := fields["severity"]; ok && v != nil {
		severity = models.NormalizeSeverity(stringify(v))
	}

	message := ""
	if v, ok := fields["message"]; ok && v != nil {
		message = stringify(v)
	}

	ts := now
	if raw, ok := fields["timestamp"].(string); ok {
		// Zero when unparseable.
		ts, _ = ParseTimestamp(raw)
	}

	var id string
	if v, ok := fields["id"]; ok && v != nil {
		id = stringify(v)
	} else {
		rawTS := fmt.Sprint(now.UnixMilli())
		if v, ok := fields["timestamp"]; ok && v != nil {
			rawTS = stringify(v)
		}
		id = source + "-" + rawTS
	}

	return models.LogRecord{
		ID:        id,
		Severity:  severity,
		Message:   message,
		Source:    source,
		Timestamp: ts,
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
