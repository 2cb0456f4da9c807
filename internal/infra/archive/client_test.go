package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	core "github.com/gmcoin/mintworker/internal/core/archive"
	"github.com/gmcoin/mintworker/internal/core/domain"
)

const testEpoch = domain.Epoch(1760486400)

func TestUploadRecordsSuccess(t *testing.T) {
	var got struct {
		BatchID             string        `json:"batchId"`
		Records             []core.Record `json:"records"`
		MintingDayTimestamp uint64        `json:"mintingDayTimestamp"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/SaveRecords" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	u := NewHTTPUploader(Config{BaseURL: srv.URL})
	ok := u.UploadRecords(context.Background(), []core.Record{
		{ID: "1", Likes: 3, Content: "gm", Category: "simple"},
	}, testEpoch)
	if !ok {
		t.Fatal("UploadRecords = false, want true")
	}
	if len(got.Records) != 1 || got.Records[0].ID != "1" {
		t.Errorf("records = %v", got.Records)
	}
	if got.MintingDayTimestamp != uint64(testEpoch) {
		t.Errorf("mintingDayTimestamp = %d", got.MintingDayTimestamp)
	}
	if got.BatchID == "" {
		t.Error("batchId missing")
	}
}

func TestUploadRecordsFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"explicit false", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]bool{"success": false})
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			u := NewHTTPUploader(Config{BaseURL: srv.URL})
			ok := u.UploadRecords(context.Background(), []core.Record{{ID: "1"}}, testEpoch)
			if ok {
				t.Error("UploadRecords = true, want false")
			}
		})
	}
}

func TestUploadRecordsEmptyIsNoop(t *testing.T) {
	u := NewHTTPUploader(Config{BaseURL: "http://127.0.0.1:1"})
	if !u.UploadRecords(context.Background(), nil, testEpoch) {
		t.Error("empty upload should succeed without a request")
	}
}

func TestTriggerIPFSUploadNeverPanicsOnError(t *testing.T) {
	u := NewHTTPUploader(Config{BaseURL: "http://127.0.0.1:1"})
	u.TriggerIPFSUpload(context.Background(), testEpoch)
}
