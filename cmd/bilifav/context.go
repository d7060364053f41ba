package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bilifav/internal/app"
	"bilifav/internal/config"
	"bilifav/internal/logging"
)

// commandContext carries the lazily initialized configuration and logger
// shared by every subcommand.
type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string
	noColorFlag   *bool

	setupOnce    sync.Once
	config       *config.Config
	logger       *slog.Logger
	configPath   string
	configExists bool
	setupErr     error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string, noColorFlag *bool) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
		noColorFlag:   noColorFlag,
	}
}

// ensureSetup loads the configuration once, applies logging flag overrides,
// and builds the file-backed logger.
func (c *commandContext) ensureSetup() (*config.Config, *slog.Logger, error) {
	c.setupOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, exists, err := config.Load(path)
		if err != nil {
			c.setupErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		if c.logFormatFlag != nil {
			if format := strings.TrimSpace(*c.logFormatFlag); format != "" {
				cfg.Logging.Format = format
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.setupErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.setupErr = err
			return
		}
		c.config = cfg
		c.logger = logger
		c.configPath = resolvedPath
		c.configExists = exists
	})
	return c.config, c.logger, c.setupErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _, _ := c.ensureSetup()
	return cfg
}

// configLocation reports where configuration was (or would have been) read
// from, and whether the file existed.
func (c *commandContext) configLocation() (string, bool) {
	c.ensureSetup()
	return c.configPath, c.configExists
}

// withApp runs fn against a fully wired application and closes it afterwards.
func (c *commandContext) withApp(fn func(*app.App) error, opts ...app.Option) error {
	cfg, logger, err := c.ensureSetup()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// colorize reports whether output to w may use ANSI colors.
func (c *commandContext) colorize(w io.Writer) bool {
	if c.noColorFlag != nil && *c.noColorFlag {
		return false
	}
	return isTerminal(w)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
