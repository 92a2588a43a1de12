package alerting

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/storage"
)

const (
	// MaxHistoryDays bounds how long delivered alerts stay queryable.
	MaxHistoryDays = 30

	historyFileName       = "alert-history.json"
	historyBackupFileName = "alert-history.backup.json"

	historySaveInterval    = 5 * time.Minute
	historyCleanupInterval = time.Hour
)

// HistoryEntry records one delivered alert with its channel outcomes.
type HistoryEntry struct {
	EventID         string           `json:"eventId"`
	Alert           Alert            `json:"alert"`
	Results         []DeliveryResult `json:"results,omitempty"`
	EscalationLevel int              `json:"escalationLevel,omitempty"`
	RecordedAt      time.Time        `json:"recordedAt"`
}

// HistoryStats summarizes the stored history.
type HistoryStats struct {
	TotalEntries int       `json:"totalEntries"`
	OldestEntry  time.Time `json:"oldestEntry"`
	NewestEntry  time.Time `json:"newestEntry"`
	DataDir      string    `json:"dataDir"`
	FileSize     int64     `json:"fileSize"`
}

// HistoryManager keeps delivered-alert history in memory and flushes it
// to disk periodically and on stop. A backup of the previous file is
// kept alongside the current one.
type HistoryManager struct {
	mu       sync.RWMutex
	saveMu   sync.Mutex
	stopOnce sync.Once

	dataDir     string
	historyFile string
	backupFile  string

	entries []HistoryEntry
	dirty   bool

	stopCh chan struct{}
}

// NewHistoryManager loads any existing history under dataDir and starts
// the periodic save and cleanup loop.
func NewHistoryManager(dataDir string) *HistoryManager {
	hm := &HistoryManager{
		dataDir:     dataDir,
		historyFile: filepath.Join(dataDir, historyFileName),
		backupFile:  filepath.Join(dataDir, historyBackupFileName),
		stopCh:      make(chan struct{}),
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Error().Err(err).Str("dir", dataDir).Msg("Failed to create history directory")
	}
	if err := hm.load(); err != nil {
		log.Error().Err(err).Msg("Failed to load alert history")
	}
	go hm.run()
	return hm
}

// Record appends one delivered alert to history.
func (hm *HistoryManager) Record(alert *Alert, results []DeliveryResult, escalationLevel int) {
	entry := HistoryEntry{
		EventID:         ulid.Make().String(),
		Alert:           *cloneAlert(alert),
		Results:         append([]DeliveryResult(nil), results...),
		EscalationLevel: escalationLevel,
		RecordedAt:      time.Now(),
	}

	hm.mu.Lock()
	hm.entries = append(hm.entries, entry)
	hm.dirty = true
	hm.mu.Unlock()

	log.Debug().Str("alertID", alert.ID).Int("deliveries", len(results)).Msg("Recorded alert in history")
}

// MarkAcknowledged updates the newest history entry for the alert so
// stored history reflects its final state.
func (hm *HistoryManager) MarkAcknowledged(alertID, by, notes string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	for i := len(hm.entries) - 1; i >= 0; i-- {
		if hm.entries[i].Alert.ID == alertID {
			hm.entries[i].Alert.Acknowledged = true
			hm.entries[i].Alert.AcknowledgedBy = by
			hm.entries[i].Alert.AcknowledgedAt = time.Now()
			hm.entries[i].Alert.AckNotes = notes
			hm.dirty = true
			return
		}
	}
}

// GetHistory returns entries recorded after since, newest first, up to
// limit when positive.
func (hm *HistoryManager) GetHistory(since time.Time, limit int) []HistoryEntry {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	var out []HistoryEntry
	for i := len(hm.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if hm.entries[i].RecordedAt.After(since) {
			out = append(out, hm.entries[i])
		}
	}
	return out
}

// GetAllHistory returns up to limit entries, newest first.
func (hm *HistoryManager) GetAllHistory(limit int) []HistoryEntry {
	return hm.GetHistory(time.Time{}, limit)
}

// Stats reports history size and file footprint.
func (hm *HistoryManager) Stats() HistoryStats {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	stats := HistoryStats{
		TotalEntries: len(hm.entries),
		DataDir:      hm.dataDir,
	}
	if len(hm.entries) > 0 {
		stats.OldestEntry = hm.entries[0].RecordedAt
		stats.NewestEntry = hm.entries[len(hm.entries)-1].RecordedAt
	}
	if fi, err := os.Stat(hm.historyFile); err == nil {
		stats.FileSize = fi.Size()
	}
	return stats
}

// Stop flushes outstanding history and halts the background loop.
func (hm *HistoryManager) Stop() {
	hm.stopOnce.Do(func() {
		close(hm.stopCh)
		if err := hm.save(); err != nil {
			log.Error().Err(err).Msg("Failed to save alert history on stop")
		}
	})
}

func (hm *HistoryManager) run() {
	saveTicker := time.NewTicker(historySaveInterval)
	cleanupTicker := time.NewTicker(historyCleanupInterval)
	defer saveTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-saveTicker.C:
			hm.mu.RLock()
			dirty := hm.dirty
			hm.mu.RUnlock()
			if dirty {
				if err := hm.save(); err != nil {
					log.Warn().Err(err).Msg("Periodic history save failed")
				}
			}
		case <-cleanupTicker.C:
			hm.pruneOld()
		case <-hm.stopCh:
			return
		}
	}
}

func (hm *HistoryManager) pruneOld() {
	cutoff := time.Now().AddDate(0, 0, -MaxHistoryDays)

	hm.mu.Lock()
	defer hm.mu.Unlock()
	idx := 0
	for idx < len(hm.entries) && hm.entries[idx].RecordedAt.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		hm.entries = append(hm.entries[:0:0], hm.entries[idx:]...)
		hm.dirty = true
		log.Debug().Int("removed", idx).Msg("Pruned old history entries")
	}
}

// save writes history to disk, keeping the previous file as a backup.
func (hm *HistoryManager) save() error {
	hm.saveMu.Lock()
	defer hm.saveMu.Unlock()

	hm.mu.Lock()
	entries := append([]HistoryEntry(nil), hm.entries...)
	hm.dirty = false
	hm.mu.Unlock()

	if data, err := os.ReadFile(hm.historyFile); err == nil {
		if err := os.WriteFile(hm.backupFile, data, 0600); err != nil {
			log.Warn().Err(err).Msg("Failed to refresh history backup")
		}
	}
	return storage.SaveJSONFile(hm.historyFile, entries)
}

// load reads the main history file, falling back to the backup.
func (hm *HistoryManager) load() error {
	var entries []HistoryEntry
	if err := storage.LoadJSONFile(hm.historyFile, &entries); err != nil {
		log.Warn().Err(err).Str("file", hm.historyFile).Msg("Failed to read history file, trying backup")
		entries = nil
		if err := storage.LoadJSONFile(hm.backupFile, &entries); err != nil {
			return err
		}
	}
	hm.mu.Lock()
	hm.entries = entries
	hm.mu.Unlock()
	if len(entries) > 0 {
		log.Info().Int("count", len(entries)).Msg("Loaded alert history")
	}
	return nil
}
