package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// ContractABI is the minting contract surface the worker touches. Kept as a
// default; operators can override it through the codec constructor when the
// deployed contract diverges.
const ContractABI = `[
  {
    "type": "event",
    "name": "MintingBatchProcessed",
    "inputs": [
      {"name": "mintingDayTimestamp", "type": "uint64", "indexed": false},
      {"name": "batches", "type": "tuple[]", "indexed": false, "components": [
        {"name": "startIndex", "type": "uint64"},
        {"name": "endIndex", "type": "uint64"},
        {"name": "nextCursor", "type": "string"},
        {"name": "errorCount", "type": "uint8"}
      ]}
    ]
  },
  {
    "type": "function",
    "name": "mintCoinsForTwitterUsers",
    "inputs": [
      {"name": "results", "type": "tuple[]", "components": [
        {"name": "userIndex", "type": "uint64"},
        {"name": "tweets", "type": "uint32"},
        {"name": "hashtagTweets", "type": "uint32"},
        {"name": "cashtagTweets", "type": "uint32"},
        {"name": "simpleTweets", "type": "uint32"},
        {"name": "likes", "type": "uint32"}
      ]},
      {"name": "mintingDayTimestamp", "type": "uint64"},
      {"name": "batches", "type": "tuple[]", "components": [
        {"name": "startIndex", "type": "uint64"},
        {"name": "endIndex", "type": "uint64"},
        {"name": "nextCursor", "type": "string"},
        {"name": "errorCount", "type": "uint8"}
      ]}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "logTwitterErrorBatches",
    "inputs": [
      {"name": "mintingDayTimestamp", "type": "uint64"},
      {"name": "batches", "type": "tuple[]", "components": [
        {"name": "startIndex", "type": "uint64"},
        {"name": "endIndex", "type": "uint64"},
        {"name": "nextCursor", "type": "string"},
        {"name": "errorCount", "type": "uint8"}
      ]}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "finishTwitterMinting",
    "inputs": [
      {"name": "mintingDayTimestamp", "type": "uint64"},
      {"name": "finalHash", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getTwitterUsersCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint64"}]
  },
  {
    "type": "function",
    "name": "getTwitterUserIDs",
    "stateMutability": "view",
    "inputs": [
      {"name": "start", "type": "uint64"},
      {"name": "count", "type": "uint64"}
    ],
    "outputs": [{"name": "", "type": "string[]"}]
  }
]`

// abiBatch mirrors the on-chain batch tuple. Field names must match the ABI
// component names for go-ethereum's tuple mapping.
type abiBatch struct {
	StartIndex uint64
	EndIndex   uint64
	NextCursor string
	ErrorCount uint8
}

type abiResult struct {
	UserIndex     uint64
	Tweets        uint32
	HashtagTweets uint32
	CashtagTweets uint32
	SimpleTweets  uint32
	Likes         uint32
}

func toABIBatches(batches []domain.Batch) []abiBatch {
	out := make([]abiBatch, len(batches))
	for i, b := range batches {
		out[i] = abiBatch{
			StartIndex: b.StartIndex,
			EndIndex:   b.EndIndex,
			NextCursor: b.NextCursor,
			ErrorCount: b.ErrorCount,
		}
	}
	return out
}

// Codec packs and unpacks every contract interaction. The ABI is injected at
// construction so tests and alternate deployments swap it without touching
// package state.
type Codec struct {
	abi abi.ABI
}

func NewCodec(abiJSON string) (*Codec, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Codec{abi: parsed}, nil
}

// EventTopic returns the topic hash of the trigger event for log filtering.
func (c *Codec) EventTopic() common.Hash {
	return c.abi.Events["MintingBatchProcessed"].ID
}

// DecodeTrigger unpacks a MintingBatchProcessed log into a TriggerEvent.
// Any shape mismatch is reported as ErrEventDecode so callers can tell a bad
// payload apart from downstream failures.
func (c *Codec) DecodeTrigger(data []byte) (*domain.TriggerEvent, error) {
	var out struct {
		MintingDayTimestamp uint64
		Batches             []abiBatch
	}
	if err := c.abi.UnpackIntoInterface(&out, "MintingBatchProcessed", data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEventDecode, err)
	}

	ev := &domain.TriggerEvent{MintingDay: domain.Epoch(out.MintingDayTimestamp)}
	for _, b := range out.Batches {
		ev.Batches = append(ev.Batches, domain.Batch{
			StartIndex: b.StartIndex,
			EndIndex:   b.EndIndex,
			NextCursor: b.NextCursor,
			ErrorCount: b.ErrorCount,
		})
	}
	return ev, nil
}

// EncodeMint packs mintCoinsForTwitterUsers calldata. Results must already be
// sorted by user index; the codec does not reorder.
func (c *Codec) EncodeMint(results []domain.Result, epoch domain.Epoch, batches []domain.Batch) (domain.ContractCall, error) {
	args := make([]abiResult, len(results))
	for i, r := range results {
		args[i] = abiResult{
			UserIndex:     r.UserIndex,
			Tweets:        r.Tweets,
			HashtagTweets: r.HashtagTweets,
			CashtagTweets: r.CashtagTweets,
			SimpleTweets:  r.SimpleTweets,
			Likes:         r.Likes,
		}
	}
	data, err := c.abi.Pack("mintCoinsForTwitterUsers", args, uint64(epoch), toABIBatches(batches))
	if err != nil {
		return domain.ContractCall{}, fmt.Errorf("pack mintCoinsForTwitterUsers: %w", err)
	}
	return domain.ContractCall{Method: "mintCoinsForTwitterUsers", Data: data}, nil
}

// EncodeLogErrors packs logTwitterErrorBatches calldata for batches that hit
// the retry ceiling.
func (c *Codec) EncodeLogErrors(epoch domain.Epoch, batches []domain.Batch) (domain.ContractCall, error) {
	data, err := c.abi.Pack("logTwitterErrorBatches", uint64(epoch), toABIBatches(batches))
	if err != nil {
		return domain.ContractCall{}, fmt.Errorf("pack logTwitterErrorBatches: %w", err)
	}
	return domain.ContractCall{Method: "logTwitterErrorBatches", Data: data}, nil
}

// EncodeFinish packs the terminal finishTwitterMinting call carrying the
// final running hash.
func (c *Codec) EncodeFinish(epoch domain.Epoch, finalHash string) (domain.ContractCall, error) {
	data, err := c.abi.Pack("finishTwitterMinting", uint64(epoch), finalHash)
	if err != nil {
		return domain.ContractCall{}, fmt.Errorf("pack finishTwitterMinting: %w", err)
	}
	return domain.ContractCall{Method: "finishTwitterMinting", Data: data}, nil
}

func (c *Codec) EncodeUsersCountCall() ([]byte, error) {
	return c.abi.Pack("getTwitterUsersCount")
}

func (c *Codec) DecodeUsersCount(data []byte) (uint64, error) {
	vals, err := c.abi.Unpack("getTwitterUsersCount", data)
	if err != nil {
		return 0, fmt.Errorf("unpack getTwitterUsersCount: %w", err)
	}
	count, ok := vals[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("getTwitterUsersCount returned %T, want uint64", vals[0])
	}
	return count, nil
}

func (c *Codec) EncodeUserIDsCall(start, count uint64) ([]byte, error) {
	return c.abi.Pack("getTwitterUserIDs", start, count)
}

func (c *Codec) DecodeUserIDs(data []byte) ([]string, error) {
	vals, err := c.abi.Unpack("getTwitterUserIDs", data)
	if err != nil {
		return nil, fmt.Errorf("unpack getTwitterUserIDs: %w", err)
	}
	ids, ok := vals[0].([]string)
	if !ok {
		return nil, fmt.Errorf("getTwitterUserIDs returned %T, want []string", vals[0])
	}
	return ids, nil
}
