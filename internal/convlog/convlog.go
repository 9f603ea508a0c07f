// Package convlog writes an NDJSON transcript of every conversation, one file
// per user.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Direction of a logged message relative to the bot.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line in a user's transcript.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	UserID     string    `json:"user_id"`
	Direction  string    `json:"direction"`
	Kind       string    `json:"kind"`
	Stage      string    `json:"stage,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	ContentRaw string    `json:"content_raw"`
	Content    string    `json:"content"`
}

// Logger appends events asynchronously. A nil *Logger discards everything.
type Logger struct {
	dir    string
	queue  chan Event
	log    *slog.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New starts a logger. It returns nil, nil when logging is disabled.
func New(cfg Config, log *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if log == nil {
		log = slog.Default()
	}

	l := &Logger{
		dir:   cfg.Dir,
		queue: make(chan Event, cfg.QueueSize),
		log:   log,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues an event. It never blocks; events are dropped when the queue
// is full or the logger is closed.
func (l *Logger) Log(ev Event) {
	if l == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Content = cleanForReadability(ev.ContentRaw)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.log.Warn("Conversation log queue full, dropping event", "user_id", ev.UserID)
	}
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.log.Warn("Failed to write conversation log", "user_id", ev.UserID, "error", err)
		}
	}
}

func (l *Logger) write(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(l.dir, fileName(ev.UserID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// fileName maps a user ID such as "tg:123" to a safe file name.
func fileName(userID string) string {
	if userID == "" {
		userID = "unknown"
	}
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, userID)
	return safe + ".ndjson"
}

// cleanForReadability drops control characters and collapses whitespace.
func cleanForReadability(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
