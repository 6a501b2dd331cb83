package notify

import (
	"context"
	"errors"
	"sync"

	goReset "github.com/MrEthical07/goReset"
)

// Multi sends to every notifier concurrently and joins their errors.
type Multi []goReset.Notifier

func (m Multi) Send(ctx context.Context, n goReset.Notification) error {
	errs := make([]error, len(m))
	var wg sync.WaitGroup
	for i, notifier := range m {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = notifier.Send(ctx, n)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
