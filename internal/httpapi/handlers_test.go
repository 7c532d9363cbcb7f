package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synnergy-labs/monero-gateway/internal/admission"
	"github.com/synnergy-labs/monero-gateway/internal/ids"
	"github.com/synnergy-labs/monero-gateway/internal/redeem"
	"github.com/synnergy-labs/monero-gateway/internal/storage"
	"github.com/synnergy-labs/monero-gateway/internal/telemetry"
)

func newTestAPI(t *testing.T) (*API, storage.Store, *admission.Layer) {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	a := admission.New(admission.Config{BloomEntries: 1000, BloomFPRate: 0.01, CacheTTL: time.Minute})
	tel := telemetry.New(logrus.PanicLevel)
	engine := redeem.New(a, s, tel)
	return New(engine, s, tel), s, a
}

// insertPayment persists a payment and admits its pid, as the monitor
// does when it ingests a confirmed transfer.
func insertPayment(t *testing.T, s storage.Store, a *admission.Layer, pidHex string, amount int64) {
	t.Helper()
	pid, err := ids.ParsePaymentId(pidHex)
	require.NoError(t, err)
	var txid [32]byte
	txid[0] = 0x7
	require.NoError(t, s.InsertPayment(context.Background(), storage.Payment{
		Pid:         pid,
		Txid:        txid,
		Amount:      amount,
		BlockHeight: 10,
		ReceivedAt:  time.Now().UTC(),
		Status:      storage.StatusUnclaimed,
	}))
	a.Insert(pid)
}

func TestRedeemHandlerHappyPath(t *testing.T) {
	api, s, a := newTestAPI(t)
	insertPayment(t, s, a, "0123456789abcdef", 1000000)

	body, _ := json.Marshal(map[string]string{"pid": "0123456789abcdef"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp redeemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(1000000), resp.Amount)
	assert.NotEmpty(t, resp.ServiceToken)
}

func TestRedeemHandlerUnknownPid(t *testing.T) {
	api, _, _ := newTestAPI(t)
	body, _ := json.Marshal(map[string]string{"pid": "ffffffffffffffff"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenRoundTrip(t *testing.T) {
	api, s, a := newTestAPI(t)
	insertPayment(t, s, a, "0123456789abcdef", 2000000)

	body, _ := json.Marshal(map[string]string{"pid": "0123456789abcdef"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec, req)
	var redeemResp redeemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemResp))

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/token/"+redeemResp.ServiceToken, nil)
	rec2 := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
	var tokenResp tokenResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &tokenResp))
	assert.Equal(t, int64(2000000), tokenResp.Amount)
	assert.Equal(t, "active", tokenResp.Status)
}

func TestRevokeThenGetTokenReportsRevoked(t *testing.T) {
	api, s, a := newTestAPI(t)
	insertPayment(t, s, a, "0123456789abcdef", 2000000)

	body, _ := json.Marshal(map[string]string{"pid": "0123456789abcdef"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/redeem", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec, req)
	var redeemResp redeemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemResp))

	revokeBody, _ := json.Marshal(revokeRequest{Reason: "abuse", AbuseScore: 90})
	revokeReq := httptest.NewRequest(http.MethodPost, "/api/v1/token/"+redeemResp.ServiceToken+"/revoke", bytes.NewReader(revokeBody))
	revokeRec := httptest.NewRecorder()
	api.InternalRouter().ServeHTTP(revokeRec, revokeReq)
	assert.Equal(t, http.StatusOK, revokeRec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/token/"+redeemResp.ServiceToken, nil)
	rec2 := httptest.NewRecorder()
	api.PublicRouter().ServeHTTP(rec2, req2)
	var tokenResp tokenResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &tokenResp))
	assert.Equal(t, "revoked", tokenResp.Status)
	assert.Equal(t, uint32(90), tokenResp.AbuseScore)
}

func TestHealthzReportsOkBeforeAnyPoll(t *testing.T) {
	api, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.InternalRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
