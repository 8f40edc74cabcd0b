package worker

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"

	"github.com/mtheof04/Ade-Scripts/internal/domain/connection"
	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/domain/workload"
)

// SQLWorker drives an engine over a database/sql driver connection instead of
// a console client. It speaks the same line protocol as the pipe worker: rows
// stream out as text lines and the sentinel row marks the workload boundary,
// synthesized here since no client process echoes it.
type SQLWorker struct {
	db        *sql.DB
	conn      connection.Connection
	resultLog io.Writer
	logger    *slog.Logger

	pending      *workload.Workload
	shutdownOnce sync.Once
	shutdownErr  error
}

// StartSQL opens a driver connection to the engine and verifies it with a
// ping. Connection failure yields a StartupError.
func StartSQL(ctx context.Context, conn connection.Connection, resultLog io.Writer, logger *slog.Logger) (*SQLWorker, error) {
	if err := conn.Validate(); err != nil {
		return nil, run.NewStartupError("worker", err)
	}

	db, err := sql.Open(conn.DriverName(), conn.DSN())
	if err != nil {
		return nil, run.NewStartupError("worker", fmt.Errorf("open %s: %w", conn.Redacted(), err))
	}

	// One connection only: the protocol has no multiplexing and interleaved
	// sessions would corrupt iteration attribution.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, run.NewStartupError("worker", fmt.Errorf("ping %s: %w", conn.Redacted(), err))
	}

	logger.Info("worker started",
		slog.String("worker", "sql"),
		slog.String("engine", string(conn.Type())),
		slog.String("target", conn.Redacted()))

	return &SQLWorker{
		db:        db,
		conn:      conn,
		resultLog: resultLog,
		logger:    logger.With(slog.String("worker", "sql")),
	}, nil
}

// Send records the workload for the next ReadUntilSentinel call. The driver
// connection has no separate input channel to flush.
func (w *SQLWorker) Send(wl workload.Workload) error {
	if err := wl.Validate(); err != nil {
		return run.NewCommunicationError("send", err)
	}
	if w.pending != nil {
		return run.NewCommunicationError("send",
			fmt.Errorf("workload %s already in flight", w.pending.Name))
	}
	w.pending = &wl
	return nil
}

// ReadUntilSentinel executes the pending workload and returns its output line
// stream. Rows are written to the stream as they are fetched; the sentinel
// line follows the last row. Execution errors surface on the stream as
// communication failures, never as silent success.
func (w *SQLWorker) ReadUntilSentinel() (*LineStream, error) {
	if w.pending == nil {
		return nil, run.NewCommunicationError("read", fmt.Errorf("no workload in flight"))
	}
	wl := *w.pending
	w.pending = nil

	pr, pw := io.Pipe()
	go w.execute(wl, pw)

	return NewLineStream(pr, w.resultLog), nil
}

func (w *SQLWorker) execute(wl workload.Workload, pw *io.PipeWriter) {
	switch wl.Kind {
	case workload.KindQuery:
		rows, err := w.db.Query(wl.SQL)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("execute %s: %w", wl.Name, err))
			return
		}
		defer rows.Close()

		if err := streamRows(rows, pw); err != nil {
			pw.CloseWithError(fmt.Errorf("fetch %s: %w", wl.Name, err))
			return
		}

	default:
		// Data loads and other statements produce no result rows. A failed
		// load is a broken measurement, not an empty table.
		if _, err := w.db.Exec(wl.SQL); err != nil {
			pw.CloseWithError(fmt.Errorf("execute %s: %w", wl.Name, err))
			return
		}
	}

	fmt.Fprintln(pw, workload.SentinelTag)
	pw.Close()
}

// streamRows writes each row as one tab-separated text line.
func streamRows(rows *sql.Rows, out io.Writer) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	values := make([]sql.NullString, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	fields := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		for i, v := range values {
			if v.Valid {
				fields[i] = v.String
			} else {
				fields[i] = "NULL"
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Shutdown releases the driver connection. Idempotent.
func (w *SQLWorker) Shutdown() error {
	w.shutdownOnce.Do(func() {
		w.shutdownErr = w.db.Close()
		w.logger.Info("worker shut down")
	})
	return w.shutdownErr
}
