package stream

import "fmt"

// ProtocolError reports a malformed inbound payload. The dispatch loop
// logs it and continues; it never stops routing.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// SubscriptionError reports a failed control-message send. Not fatal:
// the subscription stays registered and is replayed on the next
// connected transition.
type SubscriptionError struct {
	Action string
	Key    Key
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s %s: %v", e.Action, e.Key, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
