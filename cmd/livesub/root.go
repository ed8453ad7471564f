package main

import (
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/pkg/log"
)

type commandContext struct {
	envFile *string
	dataDir *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logFile *log.FileLogger
}

func newRootCommand() *cobra.Command {
	var envFile string
	var dataDir string

	ctx := &commandContext{envFile: &envFile, dataDir: &dataDir}

	rootCmd := &cobra.Command{
		Use:           "livesub",
		Short:         "Live subtitle translation backend for the browser overlay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override DATA_DIR")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newTabsCommand(ctx))
	rootCmd.AddCommand(newParseCommand())

	return rootCmd
}

// shouldSkipConfig reports whether cmd works without environment configuration.
func shouldSkipConfig(cmd *cobra.Command) bool {
	return cmd.Annotations["skipConfig"] == "true"
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(*c.envFile); path != "" {
			if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.configErr = err
				return
			}
		}

		var opts []config.Option
		if settings, err := config.LoadRuntimeSettingsFile(config.RuntimeSettingsFilePath()); err == nil {
			opts = append(opts, config.WithRuntimeSettings(settings))
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Ignoring runtime settings: %v", err)
		}
		if dir := strings.TrimSpace(*c.dataDir); dir != "" {
			opts = append(opts, func(cfg *config.Config) {
				cfg.System.DataDir = dir
			})
		}

		cfg, err := config.NewFromEnv(opts...)
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.initLogger(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) initLogger(cfg *config.Config) error {
	level := log.ParseLevel(cfg.System.LogLevel)
	if cfg.System.LogFile == "" {
		log.InitLogger(level)
		return nil
	}
	fileLogger, err := log.NewFileLogger(cfg.System.LogFile, level)
	if err != nil {
		return err
	}
	log.SetLogger(fileLogger.Logger)
	c.logFile = fileLogger
	return nil
}

func (c *commandContext) close() error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}
