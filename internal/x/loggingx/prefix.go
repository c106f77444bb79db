package loggingx

import (
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
)

// WithPrefix returns a logger that writes to target, starting every message
// with the result of formatting f with v.
//
// A nil target means logging.DefaultLogger.
func WithPrefix(target logging.Logger, f string, v ...interface{}) logging.Logger {
	if target == nil {
		target = logging.DefaultLogger
	}

	return prefixed{target, fmt.Sprintf(f, v...)}
}

// prefixed formats each message before adding the prefix, so that any '%'
// in the prefix is written literally.
type prefixed struct {
	target logging.Logger
	prefix string
}

func (p prefixed) Log(f string, v ...interface{}) {
	p.target.LogString(p.prefix + fmt.Sprintf(f, v...))
}

func (p prefixed) LogString(s string) {
	p.target.LogString(p.prefix + s)
}

func (p prefixed) Debug(f string, v ...interface{}) {
	if p.target.IsDebug() {
		p.target.DebugString(p.prefix + fmt.Sprintf(f, v...))
	}
}

func (p prefixed) DebugString(s string) {
	if p.target.IsDebug() {
		p.target.DebugString(p.prefix + s)
	}
}

func (p prefixed) IsDebug() bool {
	return p.target.IsDebug()
}
