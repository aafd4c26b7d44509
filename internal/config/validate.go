package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateTrackSearch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.AutoLinkThreshold <= 0 || m.AutoLinkThreshold > maxAutoLinkThresholdCeiling {
		return fmt.Errorf("matching.auto_link_threshold must be between 1 and %d", maxAutoLinkThresholdCeiling)
	}
	if m.ReviewFloor <= 0 {
		return errors.New("matching.review_floor must be positive")
	}
	if m.ReviewFloor >= m.AutoLinkThreshold {
		return errors.New("matching.review_floor must be below matching.auto_link_threshold")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.MaxRangeDays <= 0 {
		return errors.New("import.max_range_days must be positive")
	}
	if c.Import.PageSize > maxImportPageSize {
		return fmt.Errorf("import.page_size must not exceed %d", maxImportPageSize)
	}
	return nil
}

func (c *Config) validateTrackSearch() error {
	if !c.TrackSearch.Enabled {
		return nil
	}
	if c.TrackSearch.AccessToken == "" {
		return errors.New("track_search.access_token is required when track_search.enabled is true (or set TRACK_SEARCH_TOKEN)")
	}
	if c.TrackSearch.Limit > maxTrackSearchLimit {
		return fmt.Errorf("track_search.limit must not exceed %d", maxTrackSearchLimit)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
