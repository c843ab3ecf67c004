package server

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Level is the severity of an operator notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the operator.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers operator notices. The submission pipeline never calls it;
// only the HTTP layer does.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger *otelzap.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *otelzap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notice at its level.
func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	log := n.logger.Ctx(ctx)
	switch notice.Level {
	case LevelError:
		log.Error("Operator notice", zap.String("message", notice.Message))
	case LevelWarning:
		log.Warn("Operator notice", zap.String("message", notice.Message))
	default:
		log.Info("Operator notice", zap.String("message", notice.Message))
	}
}
