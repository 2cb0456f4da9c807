package chain

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(ContractABI)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDecodeTriggerRoundtrip(t *testing.T) {
	c := newTestCodec(t)

	batches := []abiBatch{
		{StartIndex: 0, EndIndex: 50, NextCursor: "cursor-a", ErrorCount: 1},
		{StartIndex: 50, EndIndex: 100, NextCursor: "", ErrorCount: 0},
	}
	data, err := c.abi.Events["MintingBatchProcessed"].Inputs.Pack(uint64(1760486400), batches)
	if err != nil {
		t.Fatal(err)
	}

	ev, err := c.DecodeTrigger(data)
	if err != nil {
		t.Fatal(err)
	}
	if ev.MintingDay != domain.Epoch(1760486400) {
		t.Errorf("MintingDay = %d, want 1760486400", ev.MintingDay)
	}
	want := []domain.Batch{
		{StartIndex: 0, EndIndex: 50, NextCursor: "cursor-a", ErrorCount: 1},
		{StartIndex: 50, EndIndex: 100},
	}
	if !reflect.DeepEqual(ev.Batches, want) {
		t.Errorf("Batches = %v, want %v", ev.Batches, want)
	}
}

func TestDecodeTriggerMalformed(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.DecodeTrigger([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, domain.ErrEventDecode) {
		t.Errorf("err = %v, want ErrEventDecode", err)
	}
}

func TestEncodeCallsCarrySelectors(t *testing.T) {
	c := newTestCodec(t)
	epoch := domain.Epoch(1760486400)

	mint, err := c.EncodeMint([]domain.Result{
		{UserIndex: 3, Tweets: 2, SimpleTweets: 2, Likes: 14},
	}, epoch, []domain.Batch{{StartIndex: 0, EndIndex: 50, NextCursor: "c"}})
	if err != nil {
		t.Fatal(err)
	}
	logCall, err := c.EncodeLogErrors(epoch, []domain.Batch{{StartIndex: 50, EndIndex: 100, ErrorCount: 3}})
	if err != nil {
		t.Fatal(err)
	}
	finish, err := c.EncodeFinish(epoch, "ab12")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		call   domain.ContractCall
		method string
	}{
		{mint, "mintCoinsForTwitterUsers"},
		{logCall, "logTwitterErrorBatches"},
		{finish, "finishTwitterMinting"},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			if tc.call.Method != tc.method {
				t.Errorf("Method = %q, want %q", tc.call.Method, tc.method)
			}
			want := c.abi.Methods[tc.method].ID
			if !bytes.Equal(tc.call.Data[:4], want) {
				t.Errorf("selector = %x, want %x", tc.call.Data[:4], want)
			}
		})
	}
}

func TestUsersCountRoundtrip(t *testing.T) {
	c := newTestCodec(t)

	out, err := c.abi.Methods["getTwitterUsersCount"].Outputs.Pack(uint64(1234))
	if err != nil {
		t.Fatal(err)
	}
	count, err := c.DecodeUsersCount(out)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1234 {
		t.Errorf("count = %d, want 1234", count)
	}
}

func TestUserIDsRoundtrip(t *testing.T) {
	c := newTestCodec(t)

	ids := []string{"100", "101", "102"}
	out, err := c.abi.Methods["getTwitterUserIDs"].Outputs.Pack(ids)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.DecodeUserIDs(out)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, ids) {
		t.Errorf("ids = %v, want %v", got, ids)
	}
}

func TestEventTopicStable(t *testing.T) {
	c := newTestCodec(t)
	if c.EventTopic() != c.abi.Events["MintingBatchProcessed"].ID {
		t.Error("EventTopic does not match the parsed event id")
	}
}
