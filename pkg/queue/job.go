package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Delivery is one attempt at handling a queued message.
type Delivery struct {
	ID       string
	Type     string
	Payload  json.RawMessage
	Attempt  int // 1 on the first delivery
	Final    bool
	Enqueued time.Time
}

// Job handles the messages of one type. A failed delivery is retried until
// the retry limit is reached, unless the error is marked Permanent.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, d Delivery) error
}

// DeadLetterHandler is implemented by jobs that record the final failure of
// a message. It runs before the message is moved to the dead-letter list.
type DeadLetterHandler interface {
	DeadLettered(ctx context.Context, d Delivery, cause error)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one that another attempt cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
