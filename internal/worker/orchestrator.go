// Package worker drives one minting invocation per on-chain trigger event.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gmcoin/mintworker/internal/core/archive"
	"github.com/gmcoin/mintworker/internal/core/batch"
	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/scoring"
	"github.com/gmcoin/mintworker/internal/core/state"
	"github.com/gmcoin/mintworker/internal/core/verify"
	infraarchive "github.com/gmcoin/mintworker/internal/infra/archive"
	"github.com/gmcoin/mintworker/internal/infra/chain"
	"github.com/gmcoin/mintworker/internal/infra/social"
	"github.com/gmcoin/mintworker/internal/infra/storage"
	"github.com/gmcoin/mintworker/internal/worker/metrics"
)

// SocialClient is the social API surface the orchestrator itself touches:
// paginated search on continuing rounds and authoritative lookup at finish.
type SocialClient interface {
	social.SearchClient
	verify.Lookup
}

// DirectoryFactory builds the user-directory source bound to one epoch's
// state manager.
type DirectoryFactory func(st *state.Manager) batch.Directory

// Options are the tunables of one orchestrator. Zero values fall back to the
// production defaults.
type Options struct {
	Keyword           string
	ConcurrencyLimit  int
	BatchSize         int
	PageSize          int
	VerifyThreshold   int
	VerifyCapacity    int
	VerifyConcurrency int
	MaxBatchRetries   uint8
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Keyword == "" {
		out.Keyword = "gm"
	}
	if out.ConcurrencyLimit == 0 {
		out.ConcurrencyLimit = 5
	}
	if out.BatchSize == 0 {
		out.BatchSize = 50
	}
	if out.PageSize == 0 {
		out.PageSize = 100
	}
	if out.VerifyThreshold == 0 {
		out.VerifyThreshold = 100
	}
	if out.VerifyCapacity == 0 {
		out.VerifyCapacity = 300
	}
	if out.VerifyConcurrency == 0 {
		out.VerifyConcurrency = 4
	}
	if out.MaxBatchRetries == 0 {
		out.MaxBatchRetries = 3
	}
	return out
}

// Orchestrator implements the continuing/finishing state machine of one
// epoch. It is stateless between invocations: everything it needs is loaded
// from the store at the start of Invoke and checkpointed before returning.
type Orchestrator struct {
	store      storage.Store
	social     SocialClient
	dirFactory DirectoryFactory
	uploader   infraarchive.Uploader
	codec      *chain.Codec
	opts       Options
	log        *slog.Logger

	// Invocations must be strictly sequential: two concurrent rounds over the
	// same epoch keys would corrupt the running hash.
	mu sync.Mutex
}

func NewOrchestrator(
	store storage.Store,
	socialClient SocialClient,
	dirFactory DirectoryFactory,
	uploader infraarchive.Uploader,
	codec *chain.Codec,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		social:     socialClient,
		dirFactory: dirFactory,
		uploader:   uploader,
		codec:      codec,
		opts:       opts.withDefaults(),
		log:        slog.With("component", "orchestrator"),
	}
}

// Invoke runs one round for the trigger event. A result with CanExec=false
// means nothing may be executed on-chain this round; the cause is in Message
// and the next trigger retries from the last checkpoint.
func (o *Orchestrator) Invoke(ctx context.Context, ev domain.TriggerEvent) (domain.InvocationResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.InvocationDuration.Observe(time.Since(start).Seconds())
	}()

	log := o.log.With("invocation_id", uuid.NewString(), "epoch", ev.MintingDay.String())
	st := state.New(o.store, ev.MintingDay)

	// An empty batch list arrives both on a fresh epoch and once every range
	// has drained. Only the second case finishes: the first starts claiming
	// ranges.
	finish := false
	if !ev.Continuing() {
		exhausted, err := o.epochExhausted(ctx, st)
		if err != nil {
			return domain.InvocationResult{CanExec: false, Message: "read epoch progress"}, err
		}
		finish = exhausted
	}

	var (
		res domain.InvocationResult
		err error
	)
	if finish {
		res, err = o.finishing(ctx, st, log)
	} else {
		res, err = o.continuing(ctx, st, ev, log)
	}

	outcome := "success"
	if err != nil || !res.CanExec {
		outcome = "aborted"
	}
	metrics.InvocationsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

// epochExhausted reports whether every directory index has been claimed. The
// high-water mark only moves forward, so a non-zero mark matching the cached
// directory size means no range is left to carve.
func (o *Orchestrator) epochExhausted(ctx context.Context, st *state.Manager) (bool, error) {
	maxEnd, err := st.MaxEndIndex(ctx)
	if err != nil {
		return false, err
	}
	if maxEnd == 0 {
		return false, nil
	}
	snap, err := st.Directory(ctx)
	if err != nil {
		return false, err
	}
	return snap != nil && maxEnd >= snap.Total, nil
}

func abort(message string, err error) (domain.InvocationResult, error) {
	return domain.InvocationResult{CanExec: false, Message: message}, err
}

func (o *Orchestrator) continuing(ctx context.Context, st *state.Manager, ev domain.TriggerEvent, log *slog.Logger) (domain.InvocationResult, error) {
	tallies, err := st.Tallies(ctx)
	if err != nil {
		return abort("load tallies", err)
	}
	acc, err := o.restoreAccumulator(ctx, st)
	if err != nil {
		return abort("restore running hash", err)
	}
	pending, err := o.restorePending(ctx, st)
	if err != nil {
		return abort("restore pending set", err)
	}

	// Batches at the retry ceiling stop retrying and go on-chain as errors.
	// Their handle caches die with them: the range is written off.
	incoming := make([]domain.Batch, 0, len(ev.Batches))
	var errorBatches []domain.Batch
	for _, b := range ev.Batches {
		if b.ErrorCount >= o.opts.MaxBatchRetries {
			log.Warn("batch hit retry ceiling", "range", b.Range(), "error_count", b.ErrorCount)
			if err := st.DeleteBatchHandles(ctx, b); err != nil {
				return abort("drop error batch", err)
			}
			errorBatches = append(errorBatches, b)
			continue
		}
		incoming = append(incoming, b)
	}

	mgr := batch.NewManager(st, o.dirFactory(st), o.opts.ConcurrencyLimit, o.opts.BatchSize)
	plan, err := mgr.GenerateNewBatches(ctx, incoming)
	if err != nil {
		return abort("generate batches", err)
	}
	// An empty trigger that also carves nothing means no unclaimed range is
	// left at all. That ends the epoch even when the high-water mark never
	// moved: an empty directory leaves it at zero forever.
	if !ev.Continuing() && len(plan.Batches) == 0 {
		return o.finishing(ctx, st, log)
	}
	metrics.ActiveBatches.Set(float64(len(plan.Batches)))

	outcome := social.FetchInBatches(ctx, o.social, plan.Batches, plan.Queries, plan.Users, o.opts.PageSize, log)
	if outcome.Fatal != nil {
		return abort(fmt.Sprintf("data integrity: %v", outcome.Fatal), outcome.Fatal)
	}

	engine := scoring.NewEngine(o.opts.Keyword)
	for _, post := range outcome.Posts {
		evicted, held := pending.Offer(post)
		if evicted != nil {
			scorePost(engine, tallies, acc, *evicted)
		}
		if held {
			continue
		}
		scorePost(engine, tallies, acc, post)
	}
	metrics.PendingVerifications.Set(float64(pending.Len()))

	// Demote fetch failures that just reached the ceiling.
	next := append([]domain.Batch(nil), outcome.Updated...)
	for _, b := range outcome.Failed {
		if b.ErrorCount >= o.opts.MaxBatchRetries {
			errorBatches = append(errorBatches, b)
			continue
		}
		next = append(next, b)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].StartIndex < next[j].StartIndex })

	// A user's tally leaves with its batch only once nothing can change it
	// anymore: batch drained and no posts under verification hold.
	results := flushDrained(next, tallies, pending.HeldUsers())

	if !o.uploader.UploadRecords(ctx, acc.Buffered(), st.Epoch()) {
		return abort("archive upload failed", domain.ErrUploadFailed)
	}
	acc.Flush()

	if err := st.SaveRunningHash(ctx, acc.HashHex(), acc.Uploaded()); err != nil {
		return abort("save running hash", err)
	}
	if err := st.SaveTallies(ctx, tallies); err != nil {
		return abort("save tallies", err)
	}
	if err := st.SavePendingPosts(ctx, pending.Posts()); err != nil {
		return abort("save pending posts", err)
	}

	calls, err := o.continuingCalls(st.Epoch(), results, next, errorBatches)
	if err != nil {
		return abort("encode calls", err)
	}

	log.Info("continuing round done",
		"posts", len(outcome.Posts),
		"batches", len(next),
		"error_batches", len(errorBatches),
		"flushed_users", len(results),
		"pending", pending.Len())
	return domain.InvocationResult{CanExec: true, Calls: calls}, nil
}

func (o *Orchestrator) finishing(ctx context.Context, st *state.Manager, log *slog.Logger) (domain.InvocationResult, error) {
	tallies, err := st.Tallies(ctx)
	if err != nil {
		return abort("load tallies", err)
	}
	acc, err := o.restoreAccumulator(ctx, st)
	if err != nil {
		return abort("restore running hash", err)
	}
	held, err := st.PendingPosts(ctx)
	if err != nil {
		return abort("restore pending set", err)
	}

	verifier := verify.NewVerifier(o.social, o.opts.VerifyConcurrency, log)
	engine := scoring.NewEngine(o.opts.Keyword)
	for _, post := range verifier.Reverify(ctx, held) {
		scorePost(engine, tallies, acc, post)
	}
	metrics.PendingVerifications.Set(0)

	if !o.uploader.UploadRecords(ctx, acc.Buffered(), st.Epoch()) {
		return abort("archive upload failed", domain.ErrUploadFailed)
	}
	acc.Flush()

	results := make([]domain.Result, 0, len(tallies))
	for _, t := range tallies {
		results = append(results, *t)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UserIndex < results[j].UserIndex })

	var calls []domain.ContractCall
	if len(results) > 0 {
		mint, err := o.codec.EncodeMint(results, st.Epoch(), nil)
		if err != nil {
			return abort("encode mint", err)
		}
		calls = append(calls, mint)
	}
	finish, err := o.codec.EncodeFinish(st.Epoch(), acc.HashHex())
	if err != nil {
		return abort("encode finish", err)
	}
	calls = append(calls, finish)

	if err := st.Clear(ctx); err != nil {
		return abort("clear epoch state", err)
	}

	epoch := st.Epoch()
	go o.uploader.TriggerIPFSUpload(context.WithoutCancel(ctx), epoch)

	log.Info("epoch finished",
		"verified", len(held),
		"flushed_users", len(results),
		"final_hash", acc.HashHex(),
		"records", acc.Uploaded())
	return domain.InvocationResult{CanExec: true, Calls: calls}, nil
}

func (o *Orchestrator) continuingCalls(epoch domain.Epoch, results []domain.Result, next, errorBatches []domain.Batch) ([]domain.ContractCall, error) {
	mint, err := o.codec.EncodeMint(results, epoch, next)
	if err != nil {
		return nil, err
	}
	calls := []domain.ContractCall{mint}
	if len(errorBatches) > 0 {
		logCall, err := o.codec.EncodeLogErrors(epoch, errorBatches)
		if err != nil {
			return nil, err
		}
		calls = append(calls, logCall)
	}
	return calls, nil
}

func (o *Orchestrator) restoreAccumulator(ctx context.Context, st *state.Manager) (*archive.Accumulator, error) {
	hash, uploaded, err := st.RunningHash(ctx)
	if err != nil {
		return nil, err
	}
	return archive.NewAccumulator(hash, uploaded)
}

func (o *Orchestrator) restorePending(ctx context.Context, st *state.Manager) (*verify.Set, error) {
	posts, err := st.PendingPosts(ctx)
	if err != nil {
		return nil, err
	}
	return verify.Restore(o.opts.VerifyThreshold, o.opts.VerifyCapacity, posts), nil
}

func scorePost(engine *scoring.Engine, tallies map[uint64]*domain.Result, acc *archive.Accumulator, post domain.Post) {
	tally := tallies[post.UserIndex]
	if tally == nil {
		tally = &domain.Result{UserIndex: post.UserIndex}
		tallies[post.UserIndex] = tally
	}
	category := engine.Score(tally, post.LikesCount, post.Content)
	acc.Add(post, category)
	metrics.PostsScoredTotal.WithLabelValues(category.String()).Inc()
}

// flushDrained extracts the tallies of every user whose batch fully drained
// and who has no post under verification hold, removing them from the live
// map. Results come back sorted by user index.
func flushDrained(batches []domain.Batch, tallies map[uint64]*domain.Result, held map[uint64]struct{}) []domain.Result {
	var out []domain.Result
	for _, b := range batches {
		if !b.Drained() {
			continue
		}
		for idx := b.StartIndex; idx < b.EndIndex; idx++ {
			tally, ok := tallies[idx]
			if !ok {
				continue
			}
			if _, isHeld := held[idx]; isHeld {
				continue
			}
			out = append(out, *tally)
			delete(tallies, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserIndex < out[j].UserIndex })
	return out
}
