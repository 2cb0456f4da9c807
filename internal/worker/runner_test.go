package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/infra/chain"
)

type fakeSource struct {
	head uint64
	logs []chain.Log
}

func (f *fakeSource) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, _ common.Address, _ common.Hash, fromBlock uint64) ([]chain.Log, error) {
	var out []chain.Log
	for _, l := range f.logs {
		if uint64(l.BlockNumber) >= fromBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeInvoker struct {
	events []domain.TriggerEvent
	res    domain.InvocationResult
	err    error
}

func (f *fakeInvoker) Invoke(_ context.Context, ev domain.TriggerEvent) (domain.InvocationResult, error) {
	f.events = append(f.events, ev)
	return f.res, f.err
}

type fakeSubmitter struct {
	submitted [][]domain.ContractCall
	err       error
}

func (f *fakeSubmitter) Submit(_ context.Context, calls []domain.ContractCall) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, calls)
	return nil
}

func packTrigger(t *testing.T, epoch domain.Epoch, batches []domain.Batch) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(chain.ContractABI))
	if err != nil {
		t.Fatal(err)
	}
	type abiBatch struct {
		StartIndex uint64
		EndIndex   uint64
		NextCursor string
		ErrorCount uint8
	}
	args := make([]abiBatch, len(batches))
	for i, b := range batches {
		args[i] = abiBatch(b)
	}
	data, err := parsed.Events["MintingBatchProcessed"].Inputs.Pack(uint64(epoch), args)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestRunner(t *testing.T, source LogSource, invoker Invoker, submitter chain.Submitter) *Runner {
	t.Helper()
	codec, err := chain.NewCodec(chain.ContractABI)
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(RunnerConfig{StartBlock: 1}, source, codec, invoker, submitter)
}

func TestPollOnceProcessesTriggersInOrder(t *testing.T) {
	source := &fakeSource{logs: []chain.Log{
		{BlockNumber: 5, Data: packTrigger(t, testEpoch, nil)},
		{BlockNumber: 8, Data: packTrigger(t, testEpoch, []domain.Batch{{StartIndex: 0, EndIndex: 10, NextCursor: "c"}})},
	}}
	invoker := &fakeInvoker{res: domain.InvocationResult{CanExec: true, Calls: []domain.ContractCall{{Method: "finishTwitterMinting"}}}}
	submitter := &fakeSubmitter{}
	r := newTestRunner(t, source, invoker, submitter)

	next, err := r.pollOnce(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if next != 9 {
		t.Errorf("next = %d, want 9", next)
	}
	if len(invoker.events) != 2 {
		t.Fatalf("events = %v", invoker.events)
	}
	if invoker.events[0].Continuing() || !invoker.events[1].Continuing() {
		t.Errorf("event order wrong: %v", invoker.events)
	}
	if len(submitter.submitted) != 2 {
		t.Errorf("submitted = %d rounds, want 2", len(submitter.submitted))
	}
}

func TestPollOnceSkipsUndecodableTrigger(t *testing.T) {
	source := &fakeSource{logs: []chain.Log{
		{BlockNumber: 5, Data: hexutil.Bytes{0x01, 0x02}},
		{BlockNumber: 6, Data: packTrigger(t, testEpoch, nil)},
	}}
	invoker := &fakeInvoker{res: domain.InvocationResult{CanExec: true}}
	r := newTestRunner(t, source, invoker, &fakeSubmitter{})

	next, err := r.pollOnce(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if next != 7 {
		t.Errorf("next = %d, want 7", next)
	}
	if len(invoker.events) != 1 {
		t.Errorf("events = %v, want only the decodable trigger", invoker.events)
	}
}

func TestPollOnceRetriesAbortedInvocation(t *testing.T) {
	source := &fakeSource{logs: []chain.Log{
		{BlockNumber: 5, Data: packTrigger(t, testEpoch, nil)},
	}}
	invoker := &fakeInvoker{
		res: domain.InvocationResult{CanExec: false, Message: "archive upload failed"},
		err: domain.ErrUploadFailed,
	}
	r := newTestRunner(t, source, invoker, &fakeSubmitter{})

	next, err := r.pollOnce(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if next != 1 {
		t.Errorf("next = %d, aborted trigger must be retried", next)
	}
	if got := r.Status().LastOutcome; got != "archive upload failed" {
		t.Errorf("LastOutcome = %q", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	r := newTestRunner(t, &fakeSource{}, &fakeInvoker{}, &fakeSubmitter{})
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestPollOnceSubmitFailureDoesNotAdvance(t *testing.T) {
	source := &fakeSource{logs: []chain.Log{
		{BlockNumber: 5, Data: packTrigger(t, testEpoch, nil)},
	}}
	invoker := &fakeInvoker{res: domain.InvocationResult{CanExec: true, Calls: []domain.ContractCall{{Method: "x"}}}}
	submitter := &fakeSubmitter{err: errors.New("relay down")}
	r := newTestRunner(t, source, invoker, submitter)

	next, err := r.pollOnce(context.Background(), 1)
	if err == nil {
		t.Fatal("expected submit error")
	}
	if next != 1 {
		t.Errorf("next = %d, failed submit must not advance", next)
	}
}
