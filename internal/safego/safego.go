// Package safego runs background work that must not take the process down.
package safego

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/unkn0wn-root/swrcache"
)

// Go runs fn in a new goroutine. A panic inside fn is recovered and logged
// under name with a stack trace. If wg is non-nil it is marked done when fn returns.
func Go(wg *sync.WaitGroup, log swrcache.Logger, name string, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		Run(log, name, fn)
	}()
}

// Run is Go without the goroutine, for callers already off the hot path
// (timer callbacks).
func Run(log swrcache.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			swrcache.OrNop(log).Error(fmt.Sprintf("panic recovered in goroutine: %s", name), swrcache.Fields{
				"panic":      fmt.Sprintf("%v", r),
				"stacktrace": string(debug.Stack()),
			})
		}
	}()
	fn()
}
