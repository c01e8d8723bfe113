package bookmarkdp

import (
	"go.uber.org/zap"
)

// defaultLogf and defaultDebugf route to zap's global sugared logger, which
// discards everything until a program calls zap.ReplaceGlobals.
func defaultLogf(format string, v ...interface{}) {
	zap.S().Infof(format, v...)
}

func defaultDebugf(format string, v ...interface{}) {
	zap.S().Debugf(format, v...)
}
