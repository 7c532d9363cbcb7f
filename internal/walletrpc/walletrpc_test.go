package walletrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGetHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "get_height" {
			t.Fatalf("method = %q, want get_height", req.Method)
		}
		json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage(`{"height": 1234}`)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	h, err := c.GetHeight(context.Background())
	if err != nil {
		t.Fatalf("get height: %v", err)
	}
	if h != 1234 {
		t.Fatalf("height = %d, want 1234", h)
	}
}

func TestClientGetIncomingTransfersSkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := getTransfersResult{In: []transferEntry{
			{Txid: repeatHex("ab", 32), Amount: 1000, Height: 5, PaymentID: repeatHex("01", 8)},
			{Txid: repeatHex("cd", 32), Amount: 2000, Height: 6, PaymentID: ""}, // no payment id: skipped
			{Txid: "not-hex", Amount: 3000, Height: 7, PaymentID: repeatHex("02", 8)}, // bad txid: skipped
		}}
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(rpcResponse{Result: raw})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	transfers, skipped, err := c.GetIncomingTransfers(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("get transfers: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("got %d transfers, want 1 (malformed entries must be skipped)", len(transfers))
	}
	if transfers[0].Height != 5 {
		t.Fatalf("height = %d, want 5", transfers[0].Height)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
}

func TestClientPropagatesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -1, Message: "boom"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.GetHeight(context.Background()); err == nil {
		t.Fatal("expected an error from an rpc error response")
	}
}

func TestFakeFiltersByHeightRange(t *testing.T) {
	f := NewFake(100)
	f.AddTransfer(Transfer{Height: 5, Amount: 1})
	f.AddTransfer(Transfer{Height: 50, Amount: 2})
	f.AddTransfer(Transfer{Height: 99, Amount: 3})

	transfers, skipped, err := f.GetIncomingTransfers(context.Background(), 10, 60)
	if err != nil {
		t.Fatalf("get transfers: %v", err)
	}
	if len(transfers) != 1 || transfers[0].Height != 50 {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}
}

func repeatHex(pair string, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += pair
	}
	return s
}
