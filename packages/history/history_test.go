package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openStore(t)

	req := http.NewRequest("POST", "https://restful-booker.herokuapp.com/auth").
		AddHeader("Content-Type", "application/json").
		SetBody([]byte(`{"username":"admin"}`))
	resp := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"token":"abc123"}`),
		Duration:   42 * time.Millisecond,
		RequestID:  "0b6e3c8a-6a2f-4c1e-9d7b-3c2f1f0c9a11",
	}

	recorded, err := s.Record(req, resp)
	require.NoError(t, err)
	assert.Equal(t, resp.RequestID, recorded.ID)

	got, err := s.Get(resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, "https://restful-booker.herokuapp.com/auth", got.URL)
	assert.Equal(t, []http.Header{{Name: "Content-Type", Value: "application/json"}}, got.RequestHeaders)
	assert.Equal(t, `{"username":"admin"}`, got.RequestBody)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "200 OK", got.StatusText)
	assert.Equal(t, resp.Headers, got.ResponseHeaders)
	assert.Equal(t, `{"token":"abc123"}`, got.ResponseBody)
	assert.Equal(t, 42*time.Millisecond, got.Duration)
	assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)
	assert.Empty(t, got.Error)
}

func TestStore_RecordFailure(t *testing.T) {
	s := openStore(t)

	e, err := s.RecordFailure(http.NewRequest("GET", "http://127.0.0.1:1/ping"), errors.New("connection refused"))
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Status)
	assert.Equal(t, "connection refused", got.Error)
	assert.Nil(t, got.ResponseHeaders)
}

func TestStore_List(t *testing.T) {
	s := openStore(t)

	for i := 1; i <= 25; i++ {
		_, err := s.Record(
			http.NewRequest("GET", fmt.Sprintf("https://example.com/booking/%d", i)),
			&http.Response{StatusCode: 200, Status: "200 OK"},
		)
		require.NoError(t, err)
	}

	tests := []struct {
		limit     int
		wantLen   int
		wantFirst string
	}{
		{3, 3, "https://example.com/booking/25"},
		{0, DefaultLimit, "https://example.com/booking/25"},
		{100, 25, "https://example.com/booking/25"},
	}
	for _, tt := range tests {
		entries, err := s.List(tt.limit)
		require.NoError(t, err)
		assert.Len(t, entries, tt.wantLen, "limit %d", tt.limit)
		assert.Equal(t, tt.wantFirst, entries[0].URL)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	s := openStore(t)
	for range 2 {
		_, err := s.Record(http.NewRequest("GET", "https://example.com"), &http.Response{Status: "200 OK"})
		require.NoError(t, err)
	}

	n, err := s.Clear()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(http.NewRequest("GET", "https://example.com"), &http.Response{StatusCode: 204, Status: "204 No Content"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 204, entries[0].Status)
}
