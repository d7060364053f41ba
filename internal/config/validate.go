package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Quality tier names are
// checked where they are parsed; here we only guard structural problems.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.StateDir == c.Paths.DownloadDir {
		return errors.New("paths.state_dir and paths.download_dir must differ")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.Quality == "" {
		return errors.New("download.quality must be set")
	}
	if c.Download.MinFreeSpaceGiB < 0 {
		return errors.New("download.min_free_space_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.Binary == "" {
		return errors.New("ffmpeg.binary must be set")
	}
	if c.FFmpeg.TimeoutSeconds <= 0 {
		return fmt.Errorf("ffmpeg.timeout_seconds must be positive, got %d", c.FFmpeg.TimeoutSeconds)
	}
	return nil
}
