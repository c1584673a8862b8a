package main

import (
	"path/filepath"
	"strings"
	"sync"

	"grimoire/internal/config"
	"grimoire/internal/jobstatus"
	"grimoire/internal/ledger"
	"grimoire/internal/vectorstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStatusStore(opts ...jobstatus.Option) (*jobstatus.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts = append([]jobstatus.Option{jobstatus.WithRetention(cfg.Pipeline.HistoryRetention)}, opts...)
	return jobstatus.Open(cfg.Paths.DataDir, opts...)
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(filepath.Join(cfg.Paths.DataDir, "ledger.db"))
}

func (c *commandContext) openVectorIndex() (*vectorstore.SQLiteIndex, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return vectorstore.OpenSQLiteIndex(filepath.Join(cfg.Paths.DataDir, "chunks.db"))
}
