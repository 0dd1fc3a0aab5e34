package puregym

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form id="user-login-form">
  <input type="hidden" name="form_build_id" value="form-abc123" />
  <input type="hidden" name="form_id" value="user_login_form" />
  <input type="text" name="name" />
</form></body></html>`

// fakePortal mimics the login form and API endpoints. Sessions are a cookie
// issued on a correct login.
type fakePortal struct {
	t        *testing.T
	logins   atomic.Int32
	expireAt atomic.Int32 // Expire the session on this API call number
	calls    atomic.Int32
	api      map[string]http.HandlerFunc
}

func newFakePortal(t *testing.T) (*fakePortal, *httptest.Server) {
	p := &fakePortal{t: t, api: map[string]http.HandlerFunc{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "form-abc123", r.PostForm.Get("form_build_id"))
		assert.Equal(t, "user_login_form", r.PostForm.Get("form_id"))
		if r.PostForm.Get("name") != "member@example.com" || r.PostForm.Get("pass") != "secret" {
			fmt.Fprint(w, loginPage)
			return
		}
		p.logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "SESS", Value: fmt.Sprint(p.logins.Load()), Path: "/"})
		fmt.Fprint(w, "<html><body>Welcome</body></html>")
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		n := p.calls.Add(1)
		if _, err := r.Cookie("SESS"); err != nil || n == p.expireAt.Load() {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, loginPage)
			return
		}
		h, ok := p.api[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return p, srv
}

func newTestClient(t *testing.T, srv *httptest.Server, password string) *Client {
	c, err := NewClient("member@example.com", password, Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestAvailableClasses(t *testing.T) {
	p, srv := newFakePortal(t)
	p.api["/api/search_activities"] = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, []string{"34941", "23742"}, q["classes[]"])
		assert.Equal(t, []string{"123"}, q["centers[]"])
		assert.Equal(t, "2026-03-01", q.Get("from"))
		assert.Equal(t, "2026-03-29", q.Get("to"))
		fmt.Fprint(w, `[
			{"date": "2026-03-03", "items": [
				{"startTime": "17:00:00", "endTime": "17:45:00", "title": "Bike power", "activityId": 34941,
				 "bookingId": "bk-1", "payment_type": "free", "participationId": null, "location": "Strandvejen"},
				{"startTime": "18:00:00", "endTime": "18:45:00", "title": "Bike standard", "activityId": 23742,
				 "bookingId": "bk-2", "payment_type": "free", "participationId": "P-9", "location": "Århusgade"}
			]},
			{"date": "2026-03-10", "items": []}
		]`)
	}
	c := newTestClient(t, srv, "secret")

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	classes, err := c.AvailableClasses(context.Background(), []int{34941, 23742}, []int{123}, from, from.AddDate(0, 0, 28))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	assert.Equal(t, "2026-03-03", classes[0].Date)
	assert.Equal(t, "bk-1", classes[0].BookingID)
	assert.False(t, classes[0].Booked())
	assert.True(t, classes[1].Booked())
	assert.Equal(t, "P-9", *classes[1].ParticipationID)
	assert.EqualValues(t, 1, p.logins.Load())
}

func TestCallRetriesOnceAfterSessionExpiry(t *testing.T) {
	p, srv := newFakePortal(t)
	p.api["/api/unbook_activity"] = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "P-1", r.PostForm.Get("participationId"))
		fmt.Fprint(w, `{"status": "success"}`)
	}
	c := newTestClient(t, srv, "secret")
	p.expireAt.Store(1)

	require.NoError(t, c.Cancel(context.Background(), "P-1"))
	assert.EqualValues(t, 2, p.logins.Load())
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestCallSurfacesPersistentAuthFailure(t *testing.T) {
	_, srv := newFakePortal(t)
	c := newTestClient(t, srv, "wrong")

	_, err := c.ClassTypes(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthentication))
	assert.False(t, IsTransient(err))
}

func TestBook(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantPID  string
		wantErr  error
	}{
		{name: "string participation", response: `{"status": "success", "participationId": "P-1"}`, wantPID: "P-1"},
		{name: "numeric participation", response: `{"status": "success", "participationId": 4711}`, wantPID: "4711"},
		{name: "missing participation", response: `{"status": "success"}`, wantPID: ""},
		{name: "rejected", response: `{"status": "error", "message": "Holdet er fuldt"}`, wantErr: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, srv := newFakePortal(t)
			p.api["/api/book_activity"] = func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "bk-1", r.PostForm.Get("bookingId"))
				assert.Equal(t, "34941", r.PostForm.Get("activityId"))
				assert.Equal(t, "free", r.PostForm.Get("payment_type"))
				fmt.Fprint(w, tt.response)
			}
			c := newTestClient(t, srv, "secret")

			res, err := c.Book(context.Background(), "bk-1", 34941, "free")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPID, res.ParticipationID)
		})
	}
}

func TestRemoteErrors(t *testing.T) {
	p, srv := newFakePortal(t)
	p.api["/api/get_activities"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}
	c := newTestClient(t, srv, "secret")

	_, err := c.Centers(context.Background())
	require.Error(t, err)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadGateway, re.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestCatalog(t *testing.T) {
	p, srv := newFakePortal(t)
	p.api["/api/get_activities"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"classes": [{"title": "Cykling", "options": [{"label": "Bike power", "value": 34941, "type": "class"}]}],
			"centers": [{"label": "København", "weight": 1, "options": [{"label": "Kbh Ø., Strandvejen", "value": 172, "type": "center"}]}]
		}`)
	}
	c := newTestClient(t, srv, "secret")

	types, err := c.ClassTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, 34941, types[0].Options[0].Value)

	centers, err := c.Centers(context.Background())
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.Equal(t, "Kbh Ø., Strandvejen", centers[0].Options[0].Label)
}

func TestFindInputValue(t *testing.T) {
	v, ok := findInputValue([]byte(loginPage), "form_build_id")
	require.True(t, ok)
	assert.Equal(t, "form-abc123", v)

	_, ok = findInputValue([]byte("<html><input name=other></html>"), "form_build_id")
	assert.False(t, ok)
}
