package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// IoError wraps a failure touching the ledger file, carrying the path
// for diagnostics (spec §7).
type IoError struct {
	Path   string
	Source error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("state io error at %s: %v", e.Path, e.Source)
}
func (e *IoError) Unwrap() error { return e.Source }

// PathError reports a rejected or unusable ledger path.
type PathError struct{ Message string }

func (e *PathError) Error() string { return e.Message }

// SerializationError wraps a JSON marshal/unmarshal failure.
type SerializationError struct{ Message string }

func (e *SerializationError) Error() string { return e.Message }

// validatePath enforces the same discipline the rest of the pack's
// path-safety helpers use: absolute, no "..".
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return &PathError{Message: "state path must be absolute: " + path}
	}
	if strings.Contains(path, "..") {
		return &PathError{Message: "state path must not contain '..': " + path}
	}
	return nil
}

// Lock acquires the process-wide exclusive file lock over the ledger.
// Dry-run callers should pass nonBlocking=true (advisory only); a
// mutating sync that fails to acquire is a fatal structured error
// (another convergence is in flight).
type Lock struct {
	flock *flock.Flock
}

// AcquireLock locks path+".lock". Both modes try the lock once without
// waiting and return an error on contention; nonBlocking (dry-run) only
// selects the error message.
func AcquireLock(path string, nonBlocking bool) (*Lock, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	fl := flock.New(path + ".lock")

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		if nonBlocking {
			return nil, fmt.Errorf("state lock held by another process (dry-run, non-blocking)")
		}
		return nil, fmt.Errorf("another convergence run holds the state lock")
	}
	return &Lock{flock: fl}, nil
}

// Release frees the lock. Safe to call on all exit paths, including
// after a panic recovery.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}

// Load implements the §4.7 load path: missing file returns an empty
// ledger; a corrupt primary falls back to state.json.bak.1..3 in order,
// promoting the first one that parses.
func Load(path string) (*Ledger, []string, error) {
	if err := validatePath(path); err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewLedger(), nil, nil
	}

	if ledger, err := readLedger(path); err == nil {
		migrated, warnings := migrate(ledger)
		return migrated, warnings, nil
	}

	var warnings []string
	for i := 1; i <= 3; i++ {
		backupPath := fmt.Sprintf("%s.bak.%d", path, i)
		ledger, err := readLedger(backupPath)
		if err != nil {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("primary state file corrupt, recovered from %s", backupPath))
		if err := promoteBackup(backupPath, path); err != nil {
			warnings = append(warnings, "failed to promote recovered backup: "+err.Error())
		}
		migrated, moreWarnings := migrate(ledger)
		return migrated, append(warnings, moreWarnings...), nil
	}

	warnings = append(warnings, "no recoverable state file found; starting from an empty ledger")
	return NewLedger(), warnings, nil
}

func readLedger(path string) (*Ledger, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &IoError{Path: path, Source: err}
	}
	var ledger Ledger
	if err := json.Unmarshal(content, &ledger); err != nil {
		return nil, &SerializationError{Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if ledger.Packages == nil {
		ledger.Packages = make(map[string]PackageState)
	}
	return &ledger, nil
}

func promoteBackup(backupPath, primaryPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return err
	}
	return os.WriteFile(primaryPath, content, 0o644)
}

// Save implements the §4.7 write path: bump revision, rotate backups,
// serialize, self-check, atomic rename, best-effort directory fsync.
func Save(path string, ledger *Ledger) error {
	if err := validatePath(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IoError{Path: dir, Source: err}
	}

	normalized := normalizeForPersist(ledger)

	if err := rotateBackups(dir, path); err != nil {
		return err
	}

	content, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return &SerializationError{Message: "marshalling state: " + err.Error()}
	}
	var check Ledger
	if err := json.Unmarshal(content, &check); err != nil {
		return &SerializationError{Message: "self-check failed after marshal: " + err.Error()}
	}

	tmpPath := filepath.Join(dir, "state."+uuid.NewString()+".tmp")
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return &IoError{Path: tmpPath, Source: err}
	}
	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return &IoError{Path: tmpPath, Source: err}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return &IoError{Path: tmpPath, Source: err}
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Path: tmpPath, Source: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &IoError{Path: path, Source: err}
	}

	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync() // best-effort
		dirFile.Close()
	}

	*ledger = *normalized
	return nil
}

func normalizeForPersist(ledger *Ledger) *Ledger {
	normalized := ledger.Clone()
	normalized.Meta.SchemaVersion = CurrentSchemaVersion
	normalized.Meta.StateRevision++
	if normalized.Meta.Generator == "" {
		normalized.Meta.Generator = "drift"
	}
	return normalized
}

// rotateBackups implements bak.2->bak.3, bak.1->bak.2, current->bak.1.
// Ordered so a crash between rotation and rename leaves bak.1 as the
// most recent recoverable prior state.
func rotateBackups(dir, path string) error {
	for i := 2; i >= 1; i-- {
		src := fmt.Sprintf("%s.bak.%d", path, i)
		dst := fmt.Sprintf("%s.bak.%d", path, i+1)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, dst); err != nil {
				return &IoError{Path: dst, Source: err}
			}
		}
	}
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak.1"); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return &IoError{Path: src, Source: err}
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return &IoError{Path: dst, Source: err}
	}
	return nil
}

// RecordLastUpdate stamps the ledger's meta.last_update to now.
func RecordLastUpdate(ledger *Ledger) {
	now := time.Now()
	ledger.Meta.LastUpdate = &now
}

// StalePartialUpgrade reports whether the ledger's last_update is more
// than 24h old (or never set), the condition the executor warns on when
// installing without --update (supplemented from the original
// implementation's warn_partial_upgrade; see SPEC_FULL.md).
func StalePartialUpgrade(ledger *Ledger) bool {
	if ledger.Meta.LastUpdate == nil {
		return true
	}
	return time.Since(*ledger.Meta.LastUpdate) > 24*time.Hour
}
