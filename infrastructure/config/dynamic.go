package config

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DynamicConfigManager serves runtime tuning with hot-reload support.
// Without a tuning file it serves the built-in defaults. It satisfies
// the query service's ranking configuration interface.
type DynamicConfigManager struct {
	watcher  *Watcher
	defaults *DynamicConfig

	mu        sync.RWMutex
	callbacks []ConfigChangeCallback

	logger *zap.Logger
}

// ConfigChangeCallback is called after the tuning file reloads
type ConfigChangeCallback func(newConfig *DynamicConfig)

// NewDynamicConfigManager creates a manager. An empty configPath
// disables watching.
func NewDynamicConfigManager(configPath string, logger *zap.Logger) (*DynamicConfigManager, error) {
	manager := &DynamicConfigManager{
		defaults: DefaultDynamicConfig(),
		logger:   logger,
	}

	if configPath != "" {
		watcher, err := NewWatcher(configPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		manager.watcher = watcher
		watcher.OnChange(manager.handleConfigChange)
	}

	return manager, nil
}

// Start begins watching for configuration changes
func (m *DynamicConfigManager) Start() {
	if m.watcher != nil {
		m.watcher.Start()
	}
	m.logger.Info("Dynamic configuration manager started")
}

// Stop stops the configuration manager
func (m *DynamicConfigManager) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	m.logger.Info("Dynamic configuration manager stopped")
}

func (m *DynamicConfigManager) handleConfigChange(newConfig *DynamicConfig) {
	m.mu.RLock()
	callbacks := make([]ConfigChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, callback := range callbacks {
		// Callbacks run async so a slow one cannot block the reload.
		go callback(newConfig)
	}
}

// OnChange registers a callback for configuration changes
func (m *DynamicConfigManager) OnChange(callback ConfigChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Current returns the current tuning
func (m *DynamicConfigManager) Current() *DynamicConfig {
	if m.watcher == nil {
		return m.defaults
	}
	return m.watcher.GetCurrent()
}

// SemanticWeight returns the hybrid ranking blend factor
func (m *DynamicConfigManager) SemanticWeight() float64 {
	return m.Current().Ranking.SemanticWeight
}

// DefaultDepth returns the graph expansion depth for queries that leave
// it unset
func (m *DynamicConfigManager) DefaultDepth() int {
	return m.Current().Ranking.DefaultDepth
}

// ConfidenceThreshold returns the extraction candidate cutoff
func (m *DynamicConfigManager) ConfidenceThreshold() float64 {
	return m.Current().Extraction.ConfidenceThreshold
}

// RepairInterval returns the repair sweep interval in seconds
func (m *DynamicConfigManager) RepairInterval() int {
	return m.Current().Repair.IntervalSeconds
}

// RepairStuckAfter returns, in seconds, how long a committed memory may
// stay unindexed before the sweep repairs it
func (m *DynamicConfigManager) RepairStuckAfter() int {
	return m.Current().Repair.StuckAfterSeconds
}

// RepairBatchSize returns the repair sweep batch bound
func (m *DynamicConfigManager) RepairBatchSize() int {
	return m.Current().Repair.BatchSize
}

// UpdateRanking persists new ranking settings to the tuning file
func (m *DynamicConfigManager) UpdateRanking(settings RankingSettings) error {
	if m.watcher == nil {
		return fmt.Errorf("dynamic configuration not available")
	}

	config := m.watcher.GetCurrent()
	updated := *config
	updated.Ranking = settings
	if err := m.watcher.SaveConfig(&updated); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	m.logger.Info("Ranking settings updated",
		zap.Float64("semanticWeight", settings.SemanticWeight),
		zap.Int("defaultDepth", settings.DefaultDepth),
	)
	return nil
}
