package ledger

import "go.uber.org/zap"

// LogSink writes audit entries to the structured log.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(e Entry) {
	s.log.Info("ledger entry",
		zap.String("event", e.Event.String()),
		zap.Uint64("event_id", e.EventID.ID),
		zap.Uint64("account_id", e.AccountID),
		zap.Uint32("chain_id", e.ChainID),
		zap.String("holding", e.Holding.String()),
		zap.Int64("change", e.Change),
		zap.Int64("balance", e.Balance),
		zap.Int32("height", e.Height),
	)
}
