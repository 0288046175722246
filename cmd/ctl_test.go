package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func apiStub(t *testing.T, code int, reply string) (*httptest.Server, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Method, seen.Path, seen.Query = r.Method, r.URL.Path, r.URL.RawQuery
		seen.Auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &seen.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestClientCheck(t *testing.T) {
	srv, seen := apiStub(t, http.StatusCreated, `{"status":"success","message":"scheduled slot assigned successfully","data":{"id":4}}`)
	env, err := newAPIClient(srv.URL, "").Check(3, 7)
	require.NoError(t, err)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/api/medicalbot/schedule/check-scheduled-slot/", seen.Path)
	assert.Equal(t, map[string]any{"patient": float64(3), "batch": float64(7)}, seen.Body)
}

func TestClientErrorCarriesMessage(t *testing.T) {
	srv, _ := apiStub(t, http.StatusBadRequest, `{"status":"error","message":"The patient already exists in this batch slot.","data":null}`)
	_, err := newAPIClient(srv.URL, "").Check(3, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400 The patient already exists in this batch slot.")
}

func TestClientRemoveSendsBody(t *testing.T) {
	srv, seen := apiStub(t, http.StatusOK, `{"status":"success","message":"Slot updated successfully.","data":null}`)
	_, err := newAPIClient(srv.URL, "").Remove(12)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, seen.Method)
	assert.Equal(t, map[string]any{"slot_id": float64(12)}, seen.Body)
}

func TestClientPlansUsesToken(t *testing.T) {
	srv, seen := apiStub(t, http.StatusOK, `{"status":"success","message":"Dispatch plans fetched successfully.","data":[]}`)
	_, err := newAPIClient(srv.URL, "secret").Plans(map[string]string{"batch_id": "2"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", seen.Auth)
	assert.Equal(t, "batch_id=2", seen.Query)
}

func TestCtlSwapOrderCommand(t *testing.T) {
	srv, seen := apiStub(t, http.StatusOK, `{"status":"success","message":"Successfully swapped schedule_order 1 and 2.","data":null}`)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"ctl", "--server", srv.URL, "swap-order", "5", "1", "2"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "/api/medicalbot/schedule/swap-room-order-scheduled-slot/", seen.Path)
	assert.Equal(t, map[string]any{"batch_id": float64(5), "room_pos_a": float64(1), "room_pos_b": float64(2)}, seen.Body)
	assert.Contains(t, out.String(), "Successfully swapped schedule_order 1 and 2.")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"4", "9"})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)

	_, err = parseIDs([]string{"4", "x"})
	assert.ErrorContains(t, err, "argument 2")
	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)
}

func TestParseAt(t *testing.T) {
	now := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	got, err := parseAt("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseAt("2024-03-04T06:00:00+01:00", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(now.Add(-time.Hour)))

	_, err = parseAt("monday", now)
	assert.Error(t, err)
}
