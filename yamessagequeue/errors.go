package yamessagequeue

import "errors"

var (
	ErrJobCanceled = errors.New("job was canceled")
	ErrQueueClosed = errors.New("queue is closed")
)
