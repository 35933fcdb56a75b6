// Package db records published movement states and pipeline faults in a
// local sqlite database.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/security"
)

const (
	// DefaultHistoryLimit is the number of rows returned when no limit is given.
	DefaultHistoryLimit = 100
	// MaxHistoryLimit caps a single history query.
	MaxHistoryLimit = 1000
)

type DB struct {
	*sql.DB
	name string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// StateRecord is a stored MovementState.
type StateRecord struct {
	ID          int64               `json:"id"`
	DeviceID    string              `json:"device_id"`
	SessionID   string              `json:"session_id"`
	Type        motion.MovementType `json:"type"`
	Confidence  float64             `json:"confidence"`
	IsSupported bool                `json:"is_supported"`
	Details     *motion.Details     `json:"details,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// FaultRecord is a stored pipeline fault.
type FaultRecord struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	SessionID  string    `json:"session_id"`
	Stage      string    `json:"stage"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	ErrorCount uint32    `json:"error_count"`
	Tripped    bool      `json:"tripped"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordState appends a published state. States without LastUpdated are
// stamped with the current time.
func (db *DB) RecordState(ctx context.Context, deviceID, sessionID string, st motion.MovementState) error {
	updated := time.Now()
	if st.LastUpdated != nil {
		updated = *st.LastUpdated
	}
	var details sql.NullString
	if st.Details != nil {
		b, err := json.Marshal(st.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO movement_states (
			device_id, session_id, movement_type, confidence, is_supported,
			details_json, updated_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deviceID, sessionID, string(st.Type), st.Confidence, st.Supported(),
		details, updated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert movement state: %w", err)
	}
	return nil
}

// States returns the most recent states, newest first.
func (db *DB) States(ctx context.Context, limit int) ([]StateRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT state_id, device_id, session_id, movement_type, confidence,
			is_supported, details_json, updated_unix_ms
		FROM movement_states ORDER BY state_id DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []StateRecord{}
	for rows.Next() {
		var (
			r         StateRecord
			typ       string
			details   sql.NullString
			updatedMs int64
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.SessionID, &typ, &r.Confidence,
			&r.IsSupported, &details, &updatedMs); err != nil {
			return nil, err
		}
		r.Type = motion.MovementType(typ)
		r.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		if details.Valid {
			var d motion.Details
			if err := json.Unmarshal([]byte(details.String), &d); err != nil {
				return nil, fmt.Errorf("failed to decode details of state %d: %w", r.ID, err)
			}
			r.Details = &d
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// RecordFault appends a fault reported by the engine.
func (db *DB) RecordFault(ctx context.Context, deviceID, sessionID string, ev motion.FaultEvent) error {
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO fault_events (
			device_id, session_id, stage, severity, message, error_count,
			tripped, occurred_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID, sessionID, string(ev.Stage), ev.Severity.String(), msg,
		ev.ErrorCount, ev.Tripped, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fault event: %w", err)
	}
	return nil
}

// Faults returns the most recent faults, newest first.
func (db *DB) Faults(ctx context.Context, limit int) ([]FaultRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT fault_id, device_id, session_id, stage, severity, message,
			error_count, tripped, occurred_unix_ms
		FROM fault_events ORDER BY fault_id DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []FaultRecord{}
	for rows.Next() {
		var (
			r          FaultRecord
			occurredMs int64
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.SessionID, &r.Stage, &r.Severity,
			&r.Message, &r.ErrorCount, &r.Tripped, &occurredMs); err != nil {
			return nil, err
		}
		r.OccurredAt = time.UnixMilli(occurredMs).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// StateRecorder writes the states of one engine session. It satisfies
// publish.Sink.
type StateRecorder struct {
	db        *DB
	deviceID  string
	sessionID string
}

// Recorder returns a StateRecorder bound to a device and engine session.
func (db *DB) Recorder(deviceID, sessionID string) *StateRecorder {
	return &StateRecorder{db: db, deviceID: deviceID, sessionID: sessionID}
}

func (r *StateRecorder) Name() string { return "sqlite" }

func (r *StateRecorder) Publish(ctx context.Context, st motion.MovementState) error {
	return r.db.RecordState(ctx, r.deviceID, r.sessionID, st)
}

// RecordFault stores ev under the recorder's device and session.
func (r *StateRecorder) RecordFault(ctx context.Context, ev motion.FaultEvent) error {
	return r.db.RecordFault(ctx, r.deviceID, r.sessionID, ev)
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://motion.db", db.DB, &tailsql.DBOptions{
		Label: "Motion DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := fmt.Sprintf("motion-backup-%s-%d.db", security.SanitizeFilename(db.name), time.Now().Unix())
		backupPath := filepath.Join(os.TempDir(), name)
		if err := security.ValidateExportPath(backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Invalid backup path: %v", err), http.StatusInternalServerError)
			return
		}
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
		w.Header().Set("Content-Type", "application/gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			monitoring.Logf("Failed to stream backup: %v", err)
		}
	}))
}
