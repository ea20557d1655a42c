////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
)

const testToken = "test-token"

// newTestClient starts a server for the router and returns a Client pointed
// at it.
func newTestClient(t *testing.T, r chi.Router) *Client {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	p := GetDefaultParams()
	p.BaseURL = srv.URL + "/api/chat"
	p.RequestsPerSecond = 0
	c, err := NewClient(p, Session{Token: testToken}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Tests that the conversation list decodes both bare and wrapped responses
// and that kinds are normalized on the way in.
func TestClient_ListConversations(t *testing.T) {
	bodies := []string{
		`[{"id":"c1","type":"Client Group","member_count":3},{"id":"c2","kind":"direct"}]`,
		`{"conversations":[{"id":"c1","type":"client_group","member_count":3},{"id":"c2","type":"direct"}]}`,
	}

	for _, body := range bodies {
		r := chi.NewRouter()
		r.Get("/api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			require.NotEmpty(t, r.Header.Get(requestIDHeader))
			_, _ = io.WriteString(w, body)
		})

		list, err := newTestClient(t, r).ListConversations(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, conversation.Group, list[0].Kind)
		require.Equal(t, 3, list[0].MemberCount)
		require.Equal(t, conversation.Direct, list[1].Kind)
	}
}

// Tests that GetConversation passes the before cursor in UTC and decodes the
// detail envelope.
func TestClient_GetConversation(t *testing.T) {
	before := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("AEDT", 11*3600))

	r := chi.NewRouter()
	r.Get("/api/chat/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "conv 1", chi.URLParam(r, "id"))
		require.Equal(t, "2024-02-29T23:00:00Z", r.URL.Query().Get("before"))
		_, _ = io.WriteString(w, `{"conversation":{"id":"conv 1","type":"group"},
			"messages":[{"id":"m1","content":"hi","sender_type":"worker",
			"created_at":"2024-02-29T22:00:00Z"}],"has_more":true}`)
	})

	d, err := newTestClient(t, r).GetConversation(context.Background(),
		"conv 1", before)
	require.NoError(t, err)
	require.True(t, d.HasMore)
	require.Len(t, d.Messages, 1)
	require.Equal(t, conversation.Worker, d.Messages[0].SenderType)
}

// Tests that a 401 fires the unauthenticated handler with the login URL and
// is classified as Unauthenticated.
func TestClient_Unauthenticated(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
	})

	c := newTestClient(t, r)
	var redirected atomic.Value
	c.OnUnauthenticated(func(loginURL string) { redirected.Store(loginURL) })

	_, err := c.ListConversations(context.Background())
	require.True(t, errors.Is(err, ErrUnauthenticated))
	require.Equal(t, Unauthenticated, Classify(err))
	require.Equal(t, "/login", redirected.Load())
}

// Tests that an expired session is rejected before any request is sent.
func TestClient_ExpiredSession(t *testing.T) {
	var hits int32
	r := chi.NewRouter()
	r.Get("/api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	c := newTestClient(t, r)
	c.session.Expires = time.Now().Add(-time.Minute)
	fired := false
	c.OnUnauthenticated(func(string) { fired = true })

	_, err := c.ListConversations(context.Background())
	require.True(t, errors.Is(err, ErrUnauthenticated))
	require.True(t, fired)
	require.Zero(t, atomic.LoadInt32(&hits))
}

// Tests that 403 and 404 keep the server-provided message and classify
// correctly.
func TestClient_StatusErrors(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/chat/conversations/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden,
			map[string]interface{}{"error": map[string]string{"message": "Staff only"}})
	})
	r.Delete("/api/chat/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Message not found"})
	})
	r.Get("/api/chat/push/vapid-key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream timed out")
	})

	c := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.AddMember(ctx, "c1", "u1", "Sam", "worker")
	require.Equal(t, Forbidden, Classify(err))
	require.Equal(t, "Staff only", ServerMessage(err))

	err = c.DeleteMessage(ctx, "m1")
	require.Equal(t, NotFound, Classify(err))
	require.Equal(t, "Message not found", ServerMessage(err))

	_, err = c.VapidKey(ctx)
	require.Equal(t, Transient, Classify(err))
	require.Equal(t, "upstream timed out", ServerMessage(err))
}

// Tests that SendAttachments uploads text and every file in one multipart
// request.
func TestClient_SendAttachments(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/chat/attachment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "c1", r.FormValue("conversation_id"))
		require.Equal(t, "see attached", r.FormValue("content"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		require.Equal(t, "a.pdf", files[0].Filename)
		require.Equal(t, "application/pdf", files[0].Header.Get("Content-Type"))
		require.Equal(t, `we"ird.png`, files[1].Filename)

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id": "m9", "conversation_id": "c1", "content": "see attached",
			"created_at": "2024-01-01T00:00:00Z",
			"attachments": []map[string]interface{}{
				{"id": "a1", "file_category": "document", "filename": "a.pdf"},
				{"id": "a2", "file_category": "image", "filename": `we"ird.png`},
			},
		})
	})

	msg, err := newTestClient(t, r).SendAttachments(context.Background(), "c1",
		"see attached", []attachments.File{
			attachments.FromBytes("a.pdf", "application/pdf", []byte("%PDF-1.4")),
			attachments.FromBytes(`we"ird.png`, "image/png", []byte("png")),
		})
	require.NoError(t, err)
	require.Equal(t, "m9", msg.ID)
	require.Len(t, msg.Attachments, 2)
	require.Equal(t, conversation.Document, msg.Attachments[0].Category)
}

// Tests the member and push endpoints' request bodies.
func TestClient_MembersAndPush(t *testing.T) {
	var subscribed, unsubscribed map[string]interface{}
	r := chi.NewRouter()
	r.Get("/api/chat/conversations/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"members":[{"user_id":"u1","user_name":"Ann"},
			{"user_id":"u2","user_name":"Bo","active":false,"removed_reason":"left provider"}]}`)
	})
	r.Delete("/api/chat/conversations/{id}/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "u2", chi.URLParam(r, "user"))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/chat/push/subscribe", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&subscribed))
	})
	r.Post("/api/chat/push/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&unsubscribed))
	})

	c := newTestClient(t, r)
	ctx := context.Background()

	members, err := c.ListMembers(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.True(t, members[0].Active)
	require.False(t, members[1].Active)
	require.Equal(t, "left provider", members[1].RemovedReason)

	require.NoError(t, c.RemoveMember(ctx, "c1", "u2"))

	require.NoError(t, c.SubscribePush(ctx,
		json.RawMessage(`{"endpoint":"https://push/1"}`), "cli"))
	require.Equal(t, "cli", subscribed["device_info"])
	require.NoError(t, c.UnsubscribePush(ctx, "https://push/1"))
	require.Equal(t, "https://push/1", unsubscribed["endpoint"])
}

// Tests that NewSession reads identity, role and expiry from the token.
func TestNewSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "user-1",
		"exp":           exp.Unix(),
		"role":          "authenticated",
		"app_metadata":  map[string]string{"role": "Team Leader"},
		"user_metadata": map[string]string{"name": "Jo Citizen"},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	s, err := NewSession(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", s.UserID)
	require.Equal(t, "Jo Citizen", s.Name)
	require.Equal(t, conversation.TeamLeader, s.Role)
	require.True(t, s.Role.IsStaff())
	require.True(t, exp.Equal(s.Expires))
	require.False(t, s.Expired(time.Now()))
	require.True(t, s.Expired(exp))

	_, err = NewSession("not a jwt")
	require.Error(t, err)
}

// Tests that Params survive a JSON round trip with partial overrides.
func TestParseParams(t *testing.T) {
	p, err := ParseParams(`{"Timeout":"5s","BaseURL":"https://x/api"}`)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, p.Timeout)
	require.Equal(t, "https://x/api", p.BaseURL)
	require.Equal(t, GetDefaultParams().RequestsPerSecond, p.RequestsPerSecond)
}
