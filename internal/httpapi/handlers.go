package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/synnergy-labs/monero-gateway/internal/errs"
	"github.com/synnergy-labs/monero-gateway/internal/ids"
	"github.com/synnergy-labs/monero-gateway/internal/redeem"
)

type redeemRequest struct {
	PaymentID string `json:"pid"`
}

type redeemResponse struct {
	Status       string `json:"status"`
	ServiceToken string `json:"service_token,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
}

func statusString(s redeem.Status) string {
	switch s {
	case redeem.StatusSuccess:
		return "success"
	case redeem.StatusAlreadyClaimed:
		return "already_claimed"
	case redeem.StatusNotFound:
		return "not_found"
	default:
		return "bad_request"
	}
}

// Redeem handles POST /api/v1/redeem.
func (a *API) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, redeemResponse{Status: "bad_request"})
		return
	}

	res, err := a.engine.Redeem(r.Context(), req.PaymentID)
	if a.tel != nil {
		label := statusString(res.Status)
		if err != nil {
			label = "error"
		}
		a.tel.RedeemTotal.WithLabelValues(label).Inc()
	}
	if err != nil {
		a.log.WithError(err).Error("redeem")
		writeJSON(w, http.StatusInternalServerError, redeemResponse{Status: "error"})
		return
	}

	code := http.StatusOK
	switch res.Status {
	case redeem.StatusNotFound:
		code = http.StatusNotFound
	case redeem.StatusBadRequest:
		code = http.StatusBadRequest
	}

	resp := redeemResponse{Status: statusString(res.Status)}
	if res.HasBody {
		resp.ServiceToken = res.Token.String()
		resp.Amount = res.Amount
		if res.Status == redeem.StatusSuccess && a.tel != nil {
			a.tel.TokensIssued.Inc()
		}
	}
	writeJSON(w, code, resp)
}

type tokenResponse struct {
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	IssuedAt   int64  `json:"issued_at"`
	RevokedAt  int64  `json:"revoked_at,omitempty"`
	AbuseScore uint32 `json:"abuse_score"`
}

// GetToken handles GET /api/v1/token/{token_hex}.
func (a *API) GetToken(w http.ResponseWriter, r *http.Request) {
	hexToken := mux.Vars(r)["token_hex"]
	token, err := ids.ParseServiceToken(hexToken)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid token"})
		return
	}

	rec, err := a.store.GetToken(r.Context(), token)
	if errors.Is(err, errs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		a.log.WithError(err).Error("get token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := "active"
	if rec.RevokedAt != nil {
		status = "revoked"
	}
	resp := tokenResponse{
		Status:     status,
		Amount:     rec.Amount,
		IssuedAt:   rec.IssuedAt.Unix(),
		AbuseScore: rec.AbuseScore,
	}
	if rec.RevokedAt != nil {
		resp.RevokedAt = rec.RevokedAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

type revokeRequest struct {
	Reason     string `json:"reason"`
	AbuseScore uint32 `json:"abuse_score"`
}

// RevokeToken handles POST /api/v1/token/{token_hex}/revoke on the
// internal (operator-only) listener.
func (a *API) RevokeToken(w http.ResponseWriter, r *http.Request) {
	hexToken := mux.Vars(r)["token_hex"]
	token, err := ids.ParseServiceToken(hexToken)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid token"})
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := a.store.RevokeToken(r.Context(), token, req.Reason, req.AbuseScore); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		a.log.WithError(err).Error("revoke token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if a.tel != nil {
		a.tel.TokensRevoked.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Healthz handles GET /healthz on the internal listener: it reports
// storage reachability and monitor liveness, not wallet RPC state.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	at, errMsg, ok, err := a.store.LastPoll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	resp := map[string]any{"ok": true}
	if ok {
		resp["last_poll_at"] = at.Unix()
		if errMsg != "" {
			resp["last_poll_error"] = errMsg
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
