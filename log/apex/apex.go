// Package apex adapts an apex/log Interface to swrcache.Logger.
package apex

import (
	"github.com/apex/log"

	"github.com/unkn0wn-root/swrcache"
)

var _ swrcache.Logger = Logger{}

type Logger struct{ L log.Interface }

// New wraps l; nil uses the apex package-level logger.
func New(l log.Interface) Logger {
	if l == nil {
		l = log.Log
	}
	return Logger{L: l}
}

func (a Logger) Debug(msg string, f swrcache.Fields) { a.with(f).Debug(msg) }
func (a Logger) Info(msg string, f swrcache.Fields)  { a.with(f).Info(msg) }
func (a Logger) Warn(msg string, f swrcache.Fields)  { a.with(f).Warn(msg) }
func (a Logger) Error(msg string, f swrcache.Fields) { a.with(f).Error(msg) }

func (a Logger) with(f swrcache.Fields) log.Interface {
	if len(f) == 0 {
		return a.L
	}
	return a.L.WithFields(log.Fields(f))
}
