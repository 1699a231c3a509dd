package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

var testCreds = Credentials{User: "alpe", Key: "s3cret"}

func newTestClient(t *testing.T, h http.HandlerFunc, interval time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:     srv.URL + "/",
		Credentials: testCreds,
		Timeout:     2 * time.Second,
		MinInterval: interval,
	})
}

func TestClient_SendsCredentialsAsQueryParams(t *testing.T) {
	var gotUser, gotKey, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("user")
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, `[{"id": 42, "name": "Bourse d'automne"}]`)
	}, time.Millisecond)

	events, err := c.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "/events", gotPath)
	assert.Equal(t, "alpe", gotUser)
	assert.Equal(t, "s3cret", gotKey)
	assert.Equal(t, FlexString("42"), events[0].ID)
}

func TestClient_ListSessions_SingleObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/evt-1/sessions", r.URL.Path)
		fmt.Fprint(w, `{"id": "S-1", "name": "Samedi matin", "start": "2026-11-14 09:00:00"}`)
	}, time.Millisecond)

	sessions, err := c.ListSessions(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Samedi matin", sessions[0].Name)
}

func TestClient_ListAttendees(t *testing.T) {
	since := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	var gotSince string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		fmt.Fprint(w, `{"attendees": [
			{"id": 1, "order_email": "Marie@Example.fr", "email": "other@example.fr", "name": "Dupont", "first_name": "Marie",
			 "rate": "Liste standard", "paid": 1, "valid": "1", "session_id": 77, "postal_code": 31830, "order_id": "CMD-9"},
			{"id": 2, "email": "paul@example.fr", "name": "Martin", "first_name": "Paul",
			 "rate": "Liste 1000", "paid": false, "valid": true, "session_start": "2026-11-14 09:00:00", "barcode": "123456"}
		]}`)
	}, time.Millisecond)

	attendees, err := c.ListAttendees(context.Background(), "evt-1", &since)
	require.NoError(t, err)
	require.Len(t, attendees, 2)

	assert.Equal(t, fmt.Sprint(since.Unix()), gotSince)

	a := attendees[0]
	assert.Equal(t, "Marie@Example.fr", a.ContactEmail())
	assert.True(t, bool(a.Paid))
	assert.True(t, bool(a.Valid))
	assert.Equal(t, "77", a.SessionRef())
	assert.Equal(t, FlexString("31830"), a.PostalCode)
	assert.Equal(t, "CMD-9", a.OrderRef())

	b := attendees[1]
	assert.Equal(t, "paul@example.fr", b.ContactEmail())
	assert.False(t, bool(b.Paid))
	assert.Equal(t, "2026-11-14 09:00:00", b.SessionRef())
	assert.Equal(t, "123456", b.OrderRef())
}

func TestClient_ListAttendees_OddFlagsDoNotFailTheList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 1, "email": "marie@example.fr", "name": "Dupont", "first_name": "Marie", "paid": true, "valid": true},
			{"id": 2, "email": "paul@example.fr", "name": "Martin", "first_name": "Paul", "paid": "pending", "valid": {"state": "?"},
			 "postal_code": ["31830"]}
		]`)
	}, time.Millisecond)

	attendees, err := c.ListAttendees(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	require.Len(t, attendees, 2)

	assert.True(t, bool(attendees[0].Paid))
	assert.True(t, bool(attendees[0].Valid))

	assert.False(t, bool(attendees[1].Paid))
	assert.False(t, bool(attendees[1].Valid))
	assert.Equal(t, FlexString(""), attendees[1].PostalCode)
}

func TestClient_ListAttendees_NoSince(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["since"]
		assert.False(t, present)
		fmt.Fprint(w, `[]`)
	}, time.Millisecond)

	attendees, err := c.ListAttendees(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.Empty(t, attendees)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantAuth   bool
		wantStatus int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantAuth: true},
		{name: "forbidden", status: http.StatusForbidden, wantAuth: true},
		{name: "not found", status: http.StatusNotFound, wantStatus: 404},
		{name: "too many requests", status: http.StatusTooManyRequests, wantStatus: 429},
		{name: "server error", status: http.StatusBadGateway, wantStatus: 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error": "nope"}`, tt.status)
			}, time.Millisecond)

			_, err := c.ListEvents(context.Background())
			require.Error(t, err)

			if tt.wantAuth {
				var authErr *core.AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.status, authErr.StatusCode)
				assert.False(t, core.IsTransient(err))
				return
			}
			var apiErr *core.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Credentials: testCreds, Timeout: 50 * time.Millisecond, MinInterval: time.Millisecond})

	_, err := c.ListEvents(context.Background())
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "timeout")
	assert.NotContains(t, apiErr.Error(), "s3cret", "credentials must not leak into errors")
	assert.True(t, core.IsTransient(err))
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Credentials: testCreds, Timeout: time.Second})
	_, err := c.ListSessions(context.Background(), "evt-1")

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.NotContains(t, apiErr.Error(), "s3cret")
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}, time.Millisecond)

	_, err := c.ListEvents(context.Background())
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "decode events")
}

func TestClient_AttendeeCallsAreSpaced(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	}, 100*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ListAttendees(context.Background(), "evt-1", nil)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 190*time.Millisecond, "three calls need two full intervals")
}

func TestClient_OtherEndpointsAreNotThrottled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}, time.Hour)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ListEvents(context.Background())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_RateLimitWaitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}, time.Hour)

	_, err := c.ListAttendees(context.Background(), "evt-1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListAttendees(ctx, "evt-1", nil)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "rate limit")
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`null`, false, false},
		{`1`, true, false},
		{`0`, false, false},
		{`"1"`, true, false},
		{`"oui"`, true, false},
		{`"non"`, false, false},
		{`2`, true, false},
		{`"pending"`, false, false},
		{`"rembourse"`, false, false},
		{`{"state": "paid"}`, false, false},
		{`[]`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var b FlexBool
			err := json.Unmarshal([]byte(tt.in), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bool(b))
		})
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
		E FlexString `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "x", "b": 12.5, "c": null, "d": {"code": 31830}, "e": true}`), &v))
	assert.Equal(t, FlexString("x"), v.A)
	assert.Equal(t, FlexString("12.5"), v.B)
	assert.Equal(t, FlexString(""), v.C)
	assert.Equal(t, FlexString(""), v.D)
	assert.Equal(t, FlexString("true"), v.E)
}

func TestClientPool(t *testing.T) {
	p := NewClientPool("http://ticketing.invalid", time.Second, time.Second)

	a := p.Get(testCreds)
	b := p.Get(Credentials{User: "alpe", Key: "s3cret"})
	c := p.Get(Credentials{User: "alpe", Key: "other"})

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
