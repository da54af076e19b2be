package yafsm

import "errors"

var (
	ErrUnknownStrategy   = errors.New("unknown fsm strategy")
	ErrLockNotAcquired   = errors.New("lock not acquired")
	ErrStorageClosed     = errors.New("storage closed")
	ErrFailedToReadData  = errors.New("failed to read fsm data")
	ErrFailedToWriteData = errors.New("failed to write fsm data")
	ErrTransactionFailed = errors.New("fsm data transaction failed")
)
