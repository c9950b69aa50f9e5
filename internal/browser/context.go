// internal/browser/context.go
package browser

import "context"

// combineContext returns a context derived from primary, so it carries the
// chromedp target, that is also canceled when secondary is.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
