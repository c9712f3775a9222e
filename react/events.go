package react

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogStatus tracks a log entry through its lifecycle.
type LogStatus string

const (
	LogStart   LogStatus = "start"
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
)

// Metadata keys attached to emitted log entries.
const (
	MetaStartedAt   = "started_at"
	MetaFinishedAt  = "finished_at"
	MetaElapsedTime = "elapsed_time"
	MetaProvider    = "provider"
	MetaTotalTokens = "total_tokens"
	MetaTotalPrice  = "total_price"
	MetaCurrency    = "currency"
)

// LogHandle identifies one emitted log entry so it can be finished later.
type LogHandle struct {
	ID       string
	Label    string
	ParentID string
	started  time.Time
}

// Emitter receives the loop's outward event stream: structured log
// entries for rounds and tool calls, plus the final answer text and a
// usage summary. Implementations must be safe for use from one loop at a
// time; the loop never emits concurrently.
type Emitter interface {
	// CreateLog opens a log entry. parent links nested entries, may be nil.
	CreateLog(label string, data map[string]any, metadata map[string]any, parent *LogHandle, status LogStatus) *LogHandle

	// FinishLog completes an entry opened by CreateLog.
	FinishLog(handle *LogHandle, data map[string]any, metadata map[string]any)

	// Text emits final answer text.
	Text(text string)

	// JSON emits a structured payload, such as the usage summary.
	JSON(payload any)
}

// ZapEmitter renders the event stream into a zap logger. It is the
// default emitter when the loop is given none.
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter wraps a logger as an Emitter. A nil logger is replaced
// with a no-op one.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger.With(zap.String("component", "react_events"))}
}

func (e *ZapEmitter) CreateLog(label string, data map[string]any, metadata map[string]any, parent *LogHandle, status LogStatus) *LogHandle {
	h := &LogHandle{
		ID:      uuid.NewString(),
		Label:   label,
		started: time.Now(),
	}
	if parent != nil {
		h.ParentID = parent.ID
	}
	e.logger.Info("log entry",
		zap.String("id", h.ID),
		zap.String("label", label),
		zap.String("parent", h.ParentID),
		zap.String("status", string(status)),
		zap.Any("data", data),
		zap.Any("metadata", metadata),
	)
	return h
}

func (e *ZapEmitter) FinishLog(handle *LogHandle, data map[string]any, metadata map[string]any) {
	if handle == nil {
		return
	}
	e.logger.Info("log entry finished",
		zap.String("id", handle.ID),
		zap.String("label", handle.Label),
		zap.Duration("elapsed", time.Since(handle.started)),
		zap.Any("data", data),
		zap.Any("metadata", metadata),
	)
}

func (e *ZapEmitter) Text(text string) {
	e.logger.Info("answer text", zap.String("text", text))
}

func (e *ZapEmitter) JSON(payload any) {
	e.logger.Info("answer payload", zap.Any("payload", payload))
}
