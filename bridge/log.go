package bridge

import "go.uber.org/zap"

// nopLogger is used whenever a backend is constructed without an explicit
// logger, so library consumers never have to stand up zap just to call
// AddInput.
var nopLogger = zap.NewNop().Sugar()

func orNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return nopLogger
	}
	return l
}
