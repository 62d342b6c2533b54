package handlers

import (
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/finreview/internal/common"
)

const logRelayBuffer = 10

// defaultExcludePatterns drops the chatter that would echo forever if it
// flowed back out the socket it describes.
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
}

// LogRelay consumes arbor log batches from a logger channel and pushes
// the lines that pass the level and pattern filters to WebSocket clients.
// Wire it with logger.SetChannel("websocket", relay.Channel()).
type LogRelay struct {
	handler         *WebSocketHandler
	channel         chan []arbormodels.LogEvent
	minLevel        levels.LogLevel
	excludePatterns []string
	done            chan struct{}
	once            sync.Once
}

// NewLogRelay creates the relay. Level and exclude patterns come from the
// websocket config section with safe defaults.
func NewLogRelay(handler *WebSocketHandler, wsConfig *common.WebSocketConfig) *LogRelay {
	minLevel := levels.InfoLevel
	excludePatterns := defaultExcludePatterns
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	return &LogRelay{
		handler:         handler,
		channel:         make(chan []arbormodels.LogEvent, logRelayBuffer),
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
		done:            make(chan struct{}),
	}
}

// Channel returns the channel arbor writes log batches to.
func (r *LogRelay) Channel() chan []arbormodels.LogEvent {
	return r.channel
}

// Start launches the consumer goroutine.
func (r *LogRelay) Start() {
	go r.consume()
}

func (r *LogRelay) consume() {
	for {
		select {
		case <-r.done:
			return
		case batch := <-r.channel:
			for _, entry := range batch {
				r.relay(entry)
			}
		}
	}
}

// relay filters one log event and broadcasts it.
func (r *LogRelay) relay(entry arbormodels.LogEvent) {
	arborLevel := plogToArborLevel(entry.Level)
	if arborLevel < r.minLevel {
		return
	}
	for _, pattern := range r.excludePatterns {
		if strings.Contains(entry.Message, pattern) {
			return
		}
	}

	r.handler.BroadcastLog(LogEntry{
		Timestamp: entry.Timestamp.Format("15:04:05"),
		Level:     levelString(arborLevel),
		Message:   entry.Message,
	})
}

// Stop halts the consumer. Pending batches in the channel are dropped.
func (r *LogRelay) Stop() {
	r.once.Do(func() { close(r.done) })
}

// plogToArborLevel converts phuslu/log.Level to arbor levels.LogLevel.
func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// parseLogLevel converts a config string to an arbor level.
func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// levelString maps arbor levels to wire strings.
func levelString(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
