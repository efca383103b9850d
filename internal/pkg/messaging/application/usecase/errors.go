package usecase

import "fmt"

// ErrPersistence indicates the persistence store failed inside a use case.
var ErrPersistence = fmt.Errorf("messaging use case: persistence error")

// ErrPublish indicates the pub/sub fabric rejected a publish. The message may
// already be persisted; subscribers will still see it via backfill, and the
// sender is told the send failed so it can retry.
var ErrPublish = fmt.Errorf("messaging use case: publish error")
