package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/state"
	"github.com/gmcoin/mintworker/internal/infra/social"
)

const resolveChunkSize = 100

// Connector reads the registered-user directory off the contract and resolves
// platform ids to handles. Resolution progress is checkpointed per chunk so a
// crashed invocation never re-resolves from scratch.
type Connector struct {
	client   *Client
	codec    *Codec
	contract common.Address
	resolver social.Client
	state    *state.Manager
	log      *slog.Logger
}

func NewConnector(client *Client, codec *Codec, contract common.Address, resolver social.Client, st *state.Manager) *Connector {
	return &Connector{
		client:   client,
		codec:    codec,
		contract: contract,
		resolver: resolver,
		state:    st,
		log:      slog.With("component", "directory"),
	}
}

func (c *Connector) backoff() retry.Backoff {
	return retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
}

// Handles returns the full ordered handle list of the directory, resuming
// from the cached snapshot when one exists.
func (c *Connector) Handles(ctx context.Context, epoch domain.Epoch) ([]string, error) {
	snap, err := c.state.Directory(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		total, err := c.usersCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("directory size: %w", err)
		}
		snap = &state.DirectorySnapshot{Total: total}
		c.log.Info("directory snapshot started", "epoch", epoch, "total", total)
	}

	for snap.Resolved < snap.Total {
		count := snap.Total - snap.Resolved
		if count > resolveChunkSize {
			count = resolveChunkSize
		}

		ids, err := c.userIDs(ctx, snap.Resolved, count)
		if err != nil {
			return nil, fmt.Errorf("directory ids [%d,%d): %w", snap.Resolved, snap.Resolved+count, err)
		}
		handles, err := c.resolveChunk(ctx, ids)
		if err != nil {
			return nil, err
		}

		snap.Handles = append(snap.Handles, handles...)
		snap.Resolved += uint64(len(ids))
		if err := c.state.SaveDirectory(ctx, snap); err != nil {
			return nil, err
		}
	}
	return snap.Handles, nil
}

func (c *Connector) usersCount(ctx context.Context) (uint64, error) {
	data, err := c.codec.EncodeUsersCountCall()
	if err != nil {
		return 0, err
	}
	var out []byte
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var callErr error
		out, callErr = c.client.EthCall(ctx, c.contract, data)
		return retry.RetryableError(callErr)
	})
	if err != nil {
		return 0, err
	}
	return c.codec.DecodeUsersCount(out)
}

func (c *Connector) userIDs(ctx context.Context, start, count uint64) ([]string, error) {
	data, err := c.codec.EncodeUserIDsCall(start, count)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var callErr error
		out, callErr = c.client.EthCall(ctx, c.contract, data)
		return retry.RetryableError(callErr)
	})
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeUserIDs(out)
}

// resolveChunk maps one chunk of ids to handles, preserving directory order.
// A registered id the platform no longer knows is a hard error: skipping it
// would shift every later index.
func (c *Connector) resolveChunk(ctx context.Context, ids []string) ([]string, error) {
	var byID map[string]string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var callErr error
		byID, callErr = c.resolver.ResolveHandles(ctx, ids)
		return retry.RetryableError(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve handles: %w", err)
	}

	handles := make([]string, len(ids))
	for i, id := range ids {
		h, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: user id %s", domain.ErrHandleResolution, id)
		}
		handles[i] = h
	}
	return handles, nil
}
