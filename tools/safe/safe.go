package safe

import (
	"SCProject/logger"
)

// Go starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
