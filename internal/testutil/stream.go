package testutil

import "github.com/hupe1980/stylemesh/core"

// Stream returns already closed event and error channels carrying events
// and, when err is non-nil, one terminal error. It mimics what a finished
// run hands back to its consumer.
func Stream(err error, events ...core.Event) (<-chan core.Event, <-chan error) {
	eventCh := make(chan core.Event, len(events))
	errCh := make(chan error, 1)

	for _, ev := range events {
		eventCh <- ev
	}

	if err != nil {
		errCh <- err
	}

	close(eventCh)
	close(errCh)

	return eventCh, errCh
}
