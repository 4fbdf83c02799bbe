package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/internal/config"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "Jurnal tidak ditemukan")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Jurnal tidak ditemukan", body.Error)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/therapy/cbt/steps?step=3&bad=x", nil)
	assert.Equal(t, 3, queryInt(req, "step", 1))
	assert.Equal(t, 1, queryInt(req, "missing", 1))
	assert.Equal(t, 1, queryInt(req, "bad", 1))
}

func TestGetInstruments(t *testing.T) {
	h := NewScreeningHandler(nil)
	rec := httptest.NewRecorder()
	h.GetInstruments(rec, httptest.NewRequest(http.MethodGet, "/api/screenings/instruments", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Instruments []string `json:"instruments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"phq9", "gad7", "gds15", "epds"}, body.Instruments)
}

func TestGetPushConfig(t *testing.T) {
	h := NewConfigHandler(&config.Config{})
	rec := httptest.NewRecorder()
	h.GetPushConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config/push", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["enabled"])

	h = NewConfigHandler(&config.Config{PushServiceURL: "http://localhost:8082", PushVAPIDPublicKey: "pubkey"})
	rec = httptest.NewRecorder()
	h.GetPushConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config/push", nil))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, "pubkey", body["vapid_public_key"])
}
