package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	if err := c.normalizeGoogle(); err != nil {
		return err
	}
	c.normalizeTrackSearch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CADENCE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeImport() {
	if c.Import.PageSize <= 0 {
		c.Import.PageSize = defaultImportPageSize
	}
	if c.Import.RequestTimeoutSeconds <= 0 {
		c.Import.RequestTimeoutSeconds = defaultImportRequestTimeout
	}
	if c.Import.EventBuffer <= 0 {
		c.Import.EventBuffer = defaultImportEventBuffer
	}
	keywords := make([]string, 0, len(c.Import.LessonKeywords))
	seen := make(map[string]struct{}, len(c.Import.LessonKeywords))
	for _, kw := range c.Import.LessonKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		keywords = append(keywords, DefaultLessonKeywords...)
	}
	c.Import.LessonKeywords = keywords
}

func (c *Config) normalizeGoogle() error {
	if c.Google.AccessToken == "" {
		if value, ok := os.LookupEnv("GOOGLE_ACCESS_TOKEN"); ok {
			c.Google.AccessToken = value
		}
	}
	c.Google.AccessToken = strings.TrimSpace(c.Google.AccessToken)
	if c.Google.CredentialsFile == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Google.CredentialsFile = value
		}
	}
	var err error
	if c.Google.CredentialsFile, err = expandPath(strings.TrimSpace(c.Google.CredentialsFile)); err != nil {
		return fmt.Errorf("google.credentials_file: %w", err)
	}
	c.Google.CalendarID = strings.TrimSpace(c.Google.CalendarID)
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = defaultCalendarID
	}
	c.Google.DriveFolderID = strings.TrimSpace(c.Google.DriveFolderID)
	if c.Google.DrivePageSize <= 0 {
		c.Google.DrivePageSize = defaultDrivePageSize
	}
	return nil
}

func (c *Config) normalizeTrackSearch() {
	if c.TrackSearch.AccessToken == "" {
		if value, ok := os.LookupEnv("TRACK_SEARCH_TOKEN"); ok {
			c.TrackSearch.AccessToken = value
		}
	}
	c.TrackSearch.AccessToken = strings.TrimSpace(c.TrackSearch.AccessToken)
	c.TrackSearch.BaseURL = strings.TrimRight(strings.TrimSpace(c.TrackSearch.BaseURL), "/")
	if c.TrackSearch.BaseURL == "" {
		c.TrackSearch.BaseURL = defaultTrackSearchBaseURL
	}
	if c.TrackSearch.RequestDelayMS < 0 {
		c.TrackSearch.RequestDelayMS = 0
	}
	if c.TrackSearch.Limit <= 0 {
		c.TrackSearch.Limit = defaultTrackSearchLimit
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
