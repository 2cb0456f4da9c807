package domain

import "errors"

// TriggerEvent is the decoded on-chain event that drives one invocation.
// Empty Batches means the contract has no outstanding ranges; combined with
// an exhausted directory this is the signal to finish the epoch.
type TriggerEvent struct {
	MintingDay Epoch
	Batches    []Batch
}

// Continuing reports whether the contract still has ranges in flight.
func (e TriggerEvent) Continuing() bool {
	return len(e.Batches) > 0
}

// ContractCall is an ABI-encoded function call ready to be relayed. The
// worker never signs or submits raw transactions itself.
type ContractCall struct {
	Method string
	Data   []byte
}

// InvocationResult is the outcome of one worker invocation. CanExec=false
// carries a diagnostic message instead of calls; the scheduler re-invokes on
// the next trigger without ill effect since nothing was mutated on-chain.
type InvocationResult struct {
	CanExec bool
	Calls   []ContractCall
	Message string
}

var (
	// ErrEventDecode marks a trigger payload that failed typed decoding,
	// distinct from any downstream business-logic failure.
	ErrEventDecode = errors.New("trigger event decode failed")

	// ErrHandleResolution marks a handle that could not be mapped back to a
	// directory index. Fatal for the batch: ignoring it would silently
	// corrupt the accounting.
	ErrHandleResolution = errors.New("handle resolution miss")

	// ErrMalformedPayload marks an API response that did not parse.
	ErrMalformedPayload = errors.New("malformed api payload")

	// ErrUploadFailed aborts the invocation so the running hash never
	// advances past what was actually archived.
	ErrUploadFailed = errors.New("archive upload failed")

	// ErrMissingConfig is reported before any network call is made.
	ErrMissingConfig = errors.New("missing configuration")
)
