package config

import "fmt"

// MembersConfig holds paging and export limits for the member directory.
type MembersConfig struct {
	DefaultPageSize int `env:"BACKOFFICE_DEFAULT_PAGE_SIZE" default:"25"`
	MaxPageSize     int `env:"BACKOFFICE_MAX_PAGE_SIZE" default:"100"`
	MaxExportRows   int `env:"BACKOFFICE_MAX_EXPORT_ROWS" default:"10000"`
}

// Validate validates member directory limits.
func (c *MembersConfig) Validate() error {
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("BACKOFFICE_DEFAULT_PAGE_SIZE must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("BACKOFFICE_MAX_PAGE_SIZE (%d) must be >= BACKOFFICE_DEFAULT_PAGE_SIZE (%d)", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.MaxExportRows <= 0 {
		return fmt.Errorf("BACKOFFICE_MAX_EXPORT_ROWS must be positive, got %d", c.MaxExportRows)
	}
	return nil
}
