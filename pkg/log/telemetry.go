package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/databacker/mysql-binlog-restore/pkg/remote"
	log "github.com/sirupsen/logrus"
)

const (
	sourceField     = "source"
	sourceTelemetry = "telemetry"
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Telemetry is a logrus hook that ships log entries to a remote endpoint in batches of
// BufferSize.
type Telemetry struct {
	conn       remote.Connection
	bufferSize int
	client     *http.Client

	mu     sync.Mutex
	buffer []*log.Entry
	wg     sync.WaitGroup
	// ch receives the number of entries of each batch once it was handled; for tests
	ch chan<- int
}

// NewTelemetry checks that the endpoint of conn answers and returns a hook shipping to it.
// A bufferSize of 0 or 1 sends every entry on its own.
func NewTelemetry(ctx context.Context, conn remote.Connection, bufferSize int, ch chan<- int) (*Telemetry, error) {
	client, err := remote.Client(conn)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conn.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting telemetry endpoint: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error requesting telemetry endpoint: %s", resp.Status)
	}
	return &Telemetry{conn: conn, bufferSize: bufferSize, client: client, ch: ch}, nil
}

// Levels the levels for which the hook should fire
func (t *Telemetry) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel, log.DebugLevel}
}

// Fire queues entry and sends the queue once it is full. Sending happens in the background.
func (t *Telemetry) Fire(entry *log.Entry) error {
	// our own errors would loop
	if entry.Data[sourceField] == sourceTelemetry {
		return nil
	}
	queued := entry.Dup()
	queued.Level = entry.Level
	queued.Message = entry.Message
	t.mu.Lock()
	t.buffer = append(t.buffer, queued)
	var batch []*log.Entry
	if t.bufferSize <= 1 || len(t.buffer) >= t.bufferSize {
		batch, t.buffer = t.buffer, nil
	}
	t.mu.Unlock()
	if batch != nil {
		t.send(entry.Logger, batch)
	}
	return nil
}

// Flush sends whatever is queued and waits for all outstanding batches.
func (t *Telemetry) Flush() {
	t.mu.Lock()
	batch := t.buffer
	t.buffer = nil
	t.mu.Unlock()
	if len(batch) > 0 {
		t.send(batch[0].Logger, batch)
	}
	t.wg.Wait()
}

func (t *Telemetry) send(logger *log.Logger, entries []*log.Entry) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if t.ch != nil {
			defer func() { t.ch <- len(entries) }()
		}
		l := logger.WithField(sourceField, sourceTelemetry)
		remoteEntries := make([]LogEntry, len(entries))
		for i, entry := range entries {
			runID, _ := entry.Data["run"].(string)
			remoteEntries[i] = LogEntry{
				Run:       runID,
				Timestamp: entry.Time.UTC().Format(timestampFormat),
				Level:     entry.Level.String(),
				Fields:    entry.Data,
				Message:   entry.Message,
			}
		}
		b, err := json.Marshal(remoteEntries)
		if err != nil {
			l.Errorf("error marshalling log entry: %v", err)
			return
		}
		req, err := http.NewRequest(http.MethodPost, t.conn.URL, bytes.NewReader(b))
		if err != nil {
			l.Errorf("error creating telemetry HTTP request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.client.Do(req)
		if err != nil {
			l.Errorf("error connecting to telemetry endpoint: %v", err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			l.Errorf("failed sending data telemetry endpoint: %s", resp.Status)
		}
	}()
}
