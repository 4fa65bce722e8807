package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Watcher watches the tuning file for changes and hot-reloads it
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// DynamicConfig represents runtime-changeable tuning
type DynamicConfig struct {
	Ranking    RankingSettings    `yaml:"ranking"`
	Extraction ExtractionSettings `yaml:"extraction"`
	Repair     RepairSettings     `yaml:"repair"`
	Metadata   ConfigMetadata     `yaml:"metadata"`
}

// RankingSettings controls hybrid search ranking
type RankingSettings struct {
	// SemanticWeight blends similarity against graph proximity: 1 ranks
	// by similarity only, 0 by proximity only.
	SemanticWeight float64 `yaml:"semanticWeight"`
	// DefaultDepth is the graph expansion depth when a query leaves it unset
	DefaultDepth int `yaml:"defaultDepth"`
}

// ExtractionSettings controls candidate filtering during ingestion
type ExtractionSettings struct {
	// ConfidenceThreshold drops extraction candidates scored below it
	// before resolution.
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
}

// RepairSettings controls the index repair sweep
type RepairSettings struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	BatchSize       int `yaml:"batchSize"`
	// StuckAfterSeconds is how long a memory may sit committed but
	// unindexed before the sweep treats it as stuck.
	StuckAfterSeconds int `yaml:"stuckAfterSeconds"`
}

// ConfigMetadata holds metadata about the tuning file
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
	UpdatedBy string    `yaml:"updatedBy"`
}

// DefaultDynamicConfig returns the built-in tuning defaults
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		Ranking: RankingSettings{
			SemanticWeight: 0.7,
			DefaultDepth:   2,
		},
		Extraction: ExtractionSettings{
			ConfidenceThreshold: 0.25,
		},
		Repair: RepairSettings{
			IntervalSeconds:   60,
			BatchSize:         50,
			StuckAfterSeconds: 120,
		},
		Metadata: ConfigMetadata{Version: "1.0.0"},
	}
}

// NewWatcher creates a watcher over the tuning file at path
func NewWatcher(configPath string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadConfigFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	if err := validateConfig(current); err != nil {
		return nil, fmt.Errorf("invalid initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	// Also watch the directory for atomic saves (rename operations).
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    configPath,
		watcher: watcher,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.logger.Info("Configuration watcher stopped")
}

func (w *Watcher) watchLoop() {
	// Debounce so an editor's write-then-rename sequence reloads once.
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.handleConfigChange()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleConfigChange() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	newConfig, err := loadConfigFromFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}

	// A bad tuning file never replaces a good one.
	if err := validateConfig(newConfig); err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	oldConfig := w.current
	w.current = newConfig
	handlers := make([]func(*DynamicConfig), len(w.onChange))
	copy(handlers, w.onChange)
	w.mu.Unlock()

	w.logConfigChanges(oldConfig, newConfig)

	for _, handler := range handlers {
		go handler(newConfig)
	}

	w.logger.Info("Configuration reloaded successfully",
		zap.String("version", newConfig.Metadata.Version),
	)
}

func validateConfig(config *DynamicConfig) error {
	if config.Ranking.SemanticWeight < 0 || config.Ranking.SemanticWeight > 1 {
		return fmt.Errorf("ranking.semanticWeight must be between 0 and 1")
	}
	if config.Ranking.DefaultDepth < 1 || config.Ranking.DefaultDepth > 4 {
		return fmt.Errorf("ranking.defaultDepth must be between 1 and 4")
	}
	if config.Extraction.ConfidenceThreshold < 0 || config.Extraction.ConfidenceThreshold > 1 {
		return fmt.Errorf("extraction.confidenceThreshold must be between 0 and 1")
	}
	if config.Repair.IntervalSeconds <= 0 {
		return fmt.Errorf("repair.intervalSeconds must be positive")
	}
	if config.Repair.BatchSize <= 0 || config.Repair.BatchSize > 1000 {
		return fmt.Errorf("repair.batchSize must be between 1 and 1000")
	}
	if config.Repair.StuckAfterSeconds < 0 {
		return fmt.Errorf("repair.stuckAfterSeconds must not be negative")
	}
	return nil
}

func (w *Watcher) logConfigChanges(oldConfig, newConfig *DynamicConfig) {
	changes := []string{}

	if oldConfig.Ranking.SemanticWeight != newConfig.Ranking.SemanticWeight {
		changes = append(changes, fmt.Sprintf("ranking.semanticWeight: %v -> %v",
			oldConfig.Ranking.SemanticWeight, newConfig.Ranking.SemanticWeight))
	}
	if oldConfig.Ranking.DefaultDepth != newConfig.Ranking.DefaultDepth {
		changes = append(changes, fmt.Sprintf("ranking.defaultDepth: %d -> %d",
			oldConfig.Ranking.DefaultDepth, newConfig.Ranking.DefaultDepth))
	}
	if oldConfig.Extraction.ConfidenceThreshold != newConfig.Extraction.ConfidenceThreshold {
		changes = append(changes, fmt.Sprintf("extraction.confidenceThreshold: %v -> %v",
			oldConfig.Extraction.ConfidenceThreshold, newConfig.Extraction.ConfidenceThreshold))
	}
	if oldConfig.Repair.IntervalSeconds != newConfig.Repair.IntervalSeconds {
		changes = append(changes, fmt.Sprintf("repair.intervalSeconds: %d -> %d",
			oldConfig.Repair.IntervalSeconds, newConfig.Repair.IntervalSeconds))
	}
	if oldConfig.Repair.BatchSize != newConfig.Repair.BatchSize {
		changes = append(changes, fmt.Sprintf("repair.batchSize: %d -> %d",
			oldConfig.Repair.BatchSize, newConfig.Repair.BatchSize))
	}

	if len(changes) > 0 {
		w.logger.Info("Configuration changes detected", zap.Strings("changes", changes))
	}
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// GetCurrent returns the current configuration
func (w *Watcher) GetCurrent() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func loadConfigFromFile(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Absent fields keep their defaults.
	config := DefaultDynamicConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return config, nil
}

// SaveConfig saves the configuration to the tuning file atomically
func (w *Watcher) SaveConfig(config *DynamicConfig) error {
	if err := validateConfig(config); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	config.Metadata.UpdatedAt = time.Now()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	w.current = config
	return nil
}
