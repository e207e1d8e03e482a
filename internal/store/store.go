// Package store records decode and gap-report run history. The decoding
// engines stay pure; persistence lives entirely behind this interface.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RunKind distinguishes the operations we record history for.
type RunKind string

const (
	RunKindDecode RunKind = "decode"
	RunKindGap    RunKind = "gap"
)

// Run is one recorded invocation: which ruleset ran against which input,
// how many rows it saw, and how the outcomes tallied up.
type Run struct {
	ID         string         `json:"id"`
	Kind       RunKind        `json:"kind"`
	RulesetDir string         `json:"ruleset_dir"`
	InputPath  string         `json:"input_path"`
	Rows       int            `json:"rows"`
	Decoded    int            `json:"decoded"`
	Tallies    map[string]int `json:"tallies,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind  RunKind
	Limit int
}

// Store defines the run-history persistence interface.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver. An empty driver
// selects sqlite.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
