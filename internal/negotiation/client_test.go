package negotiation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTurnServer replies to every turn with the given raw JSON body and
// captures the decoded request into got, if non-nil.
func newTurnServer(t *testing.T, body string, got *Turn) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestSendTurnNeedMoreInfo(t *testing.T) {
	var got Turn
	srv := newTurnServer(t, `{
		"message": "How many rooms does the building have?",
		"timestamp": "2026-03-01T10:00:00Z",
		"payload": {"status": "need_more_info"}
	}`, &got)
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	resp, err := c.SendTurn(context.Background(), Turn{
		SessionID: "sess-1",
		Message:   "Room near university, 3M/month",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNeedMoreInfo, resp.Status)
	assert.Equal(t, "How many rooms does the building have?", resp.Message)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), resp.Timestamp)
	assert.Nil(t, resp.Plan)

	// The request carries only the current turn, correlated by session id.
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "Room near university, 3M/month", got.Message)
}

func TestSendTurnReadyToCreate(t *testing.T) {
	srv := newTurnServer(t, `{
		"message": "Here is the plan.",
		"timestamp": "2026-03-01T10:01:00Z",
		"payload": {
			"status": "ready_to_create",
			"plan": {
				"description": "Studio near campus",
				"building": {"name": "Sunrise House", "address": "12 Elm St"},
				"room": {
					"name": "Studio 3A",
					"price": 3000000,
					"amenities": ["wifi", "ac"],
					"imagePaths": ["images/a.jpg", "images/b.jpg"]
				}
			}
		}
	}`, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	resp, err := c.SendTurn(context.Background(), Turn{
		SessionID:  "sess-1",
		Message:    "It has wifi and AC",
		ImagePaths: []string{"images/a.jpg", "images/b.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusReadyToCreate, resp.Status)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "Studio near campus", resp.Plan.Description)
	require.NotNil(t, resp.Plan.Building)
	assert.Equal(t, "Sunrise House", resp.Plan.Building.Name)
	assert.Equal(t, "Studio 3A", resp.Plan.Room.Name)
	assert.Equal(t, int64(3000000), resp.Plan.Room.Price)
	assert.Equal(t, []string{"images/a.jpg", "images/b.jpg"}, resp.Plan.Room.ImagePaths)
}

func TestSendTurnCreated(t *testing.T) {
	var got Turn
	srv := newTurnServer(t, `{
		"message": "Your room is live!",
		"timestamp": "2026-03-01T10:02:00Z",
		"payload": {"status": "created", "roomId": "room-42"}
	}`, &got)
	defer srv.Close()

	c := NewClient(srv.URL, 0)

	// Confirm turn: empty message, image paths attached.
	resp, err := c.SendTurn(context.Background(), Turn{
		SessionID:  "sess-1",
		ImagePaths: []string{"images/a.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, resp.Status)
	assert.Equal(t, "room-42", resp.RoomID)
	assert.Empty(t, got.Message, "confirm turn carries no text")
}

func TestSendTurnCreationFailed(t *testing.T) {
	srv := newTurnServer(t, `{
		"message": "Something went wrong.",
		"payload": {"status": "creation_failed", "error": "missing building"}
	}`, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	resp, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "confirm"})
	require.NoError(t, err)

	assert.Equal(t, StatusCreationFailed, resp.Status)
	assert.Equal(t, "missing building", resp.ErrorText)
}

func TestSendTurnUnknownStatusFailsOpen(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown status", `{"message": "hm", "payload": {"status": "negotiating_hard"}}`},
		{"missing status", `{"message": "hm", "payload": {}}`},
		{"missing payload", `{"message": "hm"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTurnServer(t, tt.body, nil)
			defer srv.Close()

			c := NewClient(srv.URL, 0)
			resp, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
			require.NoError(t, err)
			assert.Equal(t, StatusNeedMoreInfo, resp.Status,
				"unrecognized status must decode as need_more_info, never as an error")
		})
	}
}

func TestSendTurnMissingTimestampFallsBack(t *testing.T) {
	srv := newTurnServer(t, `{"message": "hi", "payload": {"status": "need_more_info"}}`, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	before := time.Now()
	resp, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
	require.NoError(t, err)
	assert.False(t, resp.Timestamp.Before(before))
}

func TestSendTurnTransportErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c := NewClient(srv.URL, 0)
		_, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		c := NewClient(srv.URL, 50*time.Millisecond)
		_, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, 0)
		_, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
		assert.ErrorIs(t, err, ErrRequestFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newTurnServer(t, "not json", nil)
		defer srv.Close()

		c := NewClient(srv.URL, 0)
		_, err := c.SendTurn(context.Background(), Turn{SessionID: "s", Message: "hi"})
		assert.ErrorIs(t, err, ErrBadResponse)
	})
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"need_more_info", StatusNeedMoreInfo},
		{"ready_to_create", StatusReadyToCreate},
		{"created", StatusCreated},
		{"creation_failed", StatusCreationFailed},
		{"", StatusNeedMoreInfo},
		{"CREATED", StatusNeedMoreInfo},
		{"done", StatusNeedMoreInfo},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
