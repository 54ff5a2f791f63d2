package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a usage analytics event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Command is the CLI command that produced the event, if applicable.
	Command string `json:"command,omitempty"`

	// Gateway is the gateway in use, if applicable.
	Gateway string `json:"gateway,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message,omitempty"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event type constants for common usage events.
const (
	EventTypeCommandStarted   = "command.started"
	EventTypeCommandCompleted = "command.completed"
	EventTypeCommandFailed    = "command.failed"
	EventTypeConfigLoaded     = "config.loaded"
	EventTypeError            = "error"
)

// Sink receives batches of usage events.
type Sink interface {
	// Write persists a batch of events.
	Write(events []Event) error

	// Close releases any resources held by the sink.
	Close() error
}

// FileSink appends events as JSON lines to a file under a directory.
type FileSink struct {
	dir  string
	mu   sync.Mutex
	file *os.File
}

// NewFileSink creates a sink writing JSONL files under dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Write appends the events to the current JSONL file.
func (s *FileSink) Write(events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create analytics directory: %w", err)
		}
		name := fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("20060102"))
		file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open analytics file: %w", err)
		}
		s.file = file
	}

	enc := json.NewEncoder(s.file)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode analytics event: %w", err)
		}
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// HTTPSink posts event batches as JSON to an HTTP endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink creates a sink posting to the given endpoint.
func NewHTTPSink(endpoint string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Write posts the events to the endpoint.
func (s *HTTPSink) Write(events []Event) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics events: %w", err)
	}

	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to post analytics events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("analytics endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op for the HTTP sink.
func (s *HTTPSink) Close() error {
	return nil
}

// Collector buffers usage events and flushes them to a sink in batches.
type Collector struct {
	config AnalyticsConfig
	sink   Sink
	buffer chan Event
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCollector creates a collector for the given configuration. When an
// endpoint is configured events are posted over HTTP, otherwise they are
// appended to JSONL files under the configured directory. A disabled
// collector drops all events.
func NewCollector(cfg AnalyticsConfig) (*Collector, error) {
	if !cfg.Enabled {
		return &Collector{config: cfg}, nil
	}

	var sink Sink
	switch {
	case cfg.Endpoint != "":
		sink = NewHTTPSink(cfg.Endpoint)
	case cfg.Directory != "":
		sink = NewFileSink(cfg.Directory)
	default:
		return nil, fmt.Errorf("analytics requires an endpoint or a directory")
	}

	return NewCollectorWithSink(cfg, sink), nil
}

// NewCollectorWithSink creates a collector flushing to the given sink.
// Zero buffer, batch and interval settings fall back to the defaults.
func NewCollectorWithSink(cfg AnalyticsConfig, sink Sink) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		config: cfg,
		sink:   sink,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.processEvents()

	return c
}

// Emit records a usage event. Events are dropped when the buffer is full
// so callers are never blocked on analytics.
func (c *Collector) Emit(event Event) error {
	if !c.config.Enabled || c.sink == nil {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case c.buffer <- event:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("analytics collector stopped")
	default:
		return fmt.Errorf("analytics buffer full, event dropped")
	}
}

// EmitCommandStarted records the start of a CLI command.
func (c *Collector) EmitCommandStarted(command, gateway string) error {
	return c.Emit(Event{
		Type:    EventTypeCommandStarted,
		Command: command,
		Gateway: gateway,
		Message: fmt.Sprintf("Command %s started", command),
	})
}

// EmitCommandCompleted records the successful completion of a CLI command.
func (c *Collector) EmitCommandCompleted(command, gateway string, duration time.Duration) error {
	return c.Emit(Event{
		Type:    EventTypeCommandCompleted,
		Command: command,
		Gateway: gateway,
		Message: fmt.Sprintf("Command %s completed", command),
		Data: map[string]interface{}{
			"duration_seconds": duration.Seconds(),
		},
	})
}

// EmitCommandFailed records a failed CLI command.
func (c *Collector) EmitCommandFailed(command, gateway, reason string) error {
	return c.Emit(Event{
		Type:    EventTypeCommandFailed,
		Command: command,
		Gateway: gateway,
		Message: fmt.Sprintf("Command %s failed: %s", command, reason),
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// EmitConfigLoaded records a successful configuration load.
func (c *Collector) EmitConfigLoaded(fileCount, gatewayCount int) error {
	return c.Emit(Event{
		Type:    EventTypeConfigLoaded,
		Message: "Configuration loaded",
		Data: map[string]interface{}{
			"file_count":    fileCount,
			"gateway_count": gatewayCount,
		},
	})
}

// processEvents batches buffered events and flushes them on size or interval.
func (c *Collector) processEvents() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, c.config.MaxBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Flush errors are intentionally dropped: analytics must never
		// interfere with the command that produced the events.
		_ = c.sink.Write(batch)
		batch = make([]Event, 0, c.config.MaxBatchSize)
	}

	for {
		select {
		case event := <-c.buffer:
			batch = append(batch, event)
			if len(batch) >= c.config.MaxBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-c.ctx.Done():
			// Drain whatever is still buffered before shutting down
			for {
				select {
				case event := <-c.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Shutdown flushes pending events and closes the sink.
func (c *Collector) Shutdown(ctx context.Context) error {
	if !c.config.Enabled || c.sink == nil {
		return nil
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.sink.Close()
	case <-ctx.Done():
		return fmt.Errorf("analytics collector shutdown timeout")
	}
}
