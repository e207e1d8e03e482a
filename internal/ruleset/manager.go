// Package ruleset manages immutable, timestamped rule-set directories and the
// single mutable CURRENT pointer that names the active one. Directories are
// never edited in place: a fix is a new directory plus a pointer update.
package ruleset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nameplate-cli/internal/rules"
)

// PointerFile names the CURRENT pointer within the base directory.
const PointerFile = "CURRENT.txt"

// DefaultRetention is how many ruleset versions cleanup keeps by default.
const DefaultRetention = 5

// Manager resolves, promotes, lists, and prunes ruleset directories under one
// base directory. The design assumes a single writer (one promotion job);
// readers are safe because ruleset directories are immutable once written.
type Manager struct {
	baseDir string
}

// NewManager returns a Manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the directory that holds the ruleset versions and pointer.
func (m *Manager) BaseDir() string { return m.baseDir }

// isRulesetDir reports whether dir holds at least one rule table.
func isRulesetDir(dir string) bool {
	for _, name := range []string{rules.SerialRuleFile, rules.AttributeRuleFile} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// ReadCurrent parses the CURRENT pointer and returns the directory it names,
// or "" when the pointer is missing, empty, or dangling. The canonical
// pointer value is a bare folder name; legacy full-path values are tolerated
// by taking their last path element.
func (m *Manager) ReadCurrent() string {
	data, err := os.ReadFile(filepath.Join(m.baseDir, PointerFile))
	if err != nil {
		return ""
	}
	raw := strings.TrimSpace(strings.ReplaceAll(string(data), "\\", "/"))
	if raw == "" {
		return ""
	}

	dir := filepath.Join(m.baseDir, filepath.Base(raw))
	if isRulesetDir(dir) {
		return dir
	}
	return ""
}

// UpdateCurrent atomically points CURRENT at the given ruleset directory.
// Only the folder name is stored, keeping pointer values portable across
// environments.
func (m *Manager) UpdateCurrent(dir string) error {
	if !isRulesetDir(dir) {
		return eris.Errorf("ruleset: %s is not a ruleset directory", dir)
	}

	pointer := filepath.Join(m.baseDir, PointerFile)
	tmp := pointer + ".tmp"
	if err := os.WriteFile(tmp, []byte(filepath.Base(dir)+"\n"), 0o644); err != nil {
		return eris.Wrap(err, "ruleset: write pointer temp file")
	}
	if err := os.Rename(tmp, pointer); err != nil {
		return eris.Wrap(err, "ruleset: replace pointer")
	}
	return nil
}

// Resolve picks the ruleset directory to use: the explicit argument if given
// (which must exist), else whatever CURRENT names, else "".
func (m *Manager) Resolve(explicit string) string {
	if explicit != "" {
		if info, err := os.Stat(explicit); err == nil && info.IsDir() {
			return explicit
		}
		return ""
	}
	return m.ReadCurrent()
}

// ListVersions returns every ruleset directory under the base, newest
// modification time first.
func (m *Manager) ListVersions() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read base dir %s", m.baseDir)
	}

	type version struct {
		dir   string
		mtime int64
	}
	var versions []version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.baseDir, e.Name())
		if !isRulesetDir(dir) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		versions = append(versions, version{dir: dir, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].mtime > versions[j].mtime })

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.dir
	}
	return out, nil
}

// Cleanup removes all but the newest retention versions, always protecting
// whatever CURRENT resolves to even when it falls outside the retention
// window. Deletion failures are warnings, not fatal: another process may be
// mid-read in an old version.
func (m *Manager) Cleanup(retention int, dryRun bool) (removed []string, err error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	versions, err := m.ListVersions()
	if err != nil {
		return nil, err
	}
	if len(versions) <= retention {
		return nil, nil
	}

	keep := make(map[string]struct{}, retention+1)
	for _, v := range versions[:retention] {
		keep[v] = struct{}{}
	}
	if current := m.ReadCurrent(); current != "" {
		keep[current] = struct{}{}
	}

	for _, v := range versions {
		if _, ok := keep[v]; ok {
			continue
		}
		if dryRun {
			zap.L().Info("would remove ruleset", zap.String("dir", v))
			removed = append(removed, v)
			continue
		}
		if rmErr := os.RemoveAll(v); rmErr != nil {
			zap.L().Warn("failed to remove ruleset, likely in use",
				zap.String("dir", v),
				zap.Error(rmErr),
			)
			continue
		}
		zap.L().Info("removed ruleset", zap.String("dir", v))
		removed = append(removed, v)
	}
	return removed, nil
}
