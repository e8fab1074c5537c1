package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcus/imtti/internal/localstore"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/remote"
)

type remoteCall struct {
	method string
	path   string
	body   any
}

// fakeRemote answers requests from a handler and records every call.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []remoteCall
	handler func(method, path string, body any) (string, error)
	// probeGate, when set, holds the /admins probe until closed.
	probeGate chan struct{}
	probed    bool
}

func (f *fakeRemote) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	f.mu.Lock()
	gate := f.probeGate
	first := !f.probed
	f.probed = true
	f.mu.Unlock()

	if first && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, remoteCall{method: method, path: path, body: body})
	h := f.handler
	f.mu.Unlock()

	out, err := h(method, path, body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) setHandler(h func(method, path string, body any) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func healthy(method, path string, body any) (string, error) {
	return `[]`, nil
}

func unreachable(method, path string, body any) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

func newTestClient(t *testing.T, r *fakeRemote) (*Client, *localstore.Collections) {
	t.Helper()
	local := localstore.NewCollections(localstore.NewMemory(), nil)
	c := New(r, local, WithProbeTimeout(time.Second))
	return c, local
}

func newOnlineClient(t *testing.T, h func(method, path string, body any) (string, error)) (*Client, *localstore.Collections, *fakeRemote) {
	t.Helper()
	r := &fakeRemote{handler: healthy}
	c, local := newTestClient(t, r)
	require.True(t, c.Wait(context.Background()))
	r.setHandler(h)
	return c, local, r
}

func newOfflineClient(t *testing.T) (*Client, *localstore.Collections, *fakeRemote) {
	t.Helper()
	r := &fakeRemote{handler: unreachable}
	c, local := newTestClient(t, r)
	require.False(t, c.Wait(context.Background()))
	return c, local, r
}

func TestOfflineGetStudentsEmptyStore(t *testing.T) {
	c, _, _ := newOfflineClient(t)

	res := c.GetStudents(context.Background())
	require.Equal(t, SourceLocal, res.Source)
	require.NoError(t, res.Err)
	require.False(t, res.FellBack())
	records, ok := res.Records()
	require.True(t, ok)
	require.Empty(t, records)
}

func TestOfflineReadsReturnLocalContentsWithoutRemoteCalls(t *testing.T) {
	c, local, r := newOfflineClient(t)
	ctx := context.Background()

	seeded := map[models.Collection][]models.Record{
		models.CollectionCenters:      {{"id": json.Number("1"), "name": "North"}},
		models.CollectionStudents:     {{"id": "s1"}, {"id": "s2"}},
		models.CollectionApplications: {{"id": "a1"}},
		models.CollectionMarks:        {{"id": "m1", "score": json.Number("91")}},
		models.CollectionAdmins:       {{"id": "root"}},
	}
	for name, records := range seeded {
		for _, rec := range records {
			_, err := local.AppendLocal(ctx, name, rec)
			require.NoError(t, err)
		}
	}
	before := r.callCount()

	reads := map[models.Collection]func(context.Context) Result{
		models.CollectionCenters:      c.GetCenters,
		models.CollectionStudents:     c.GetStudents,
		models.CollectionApplications: c.GetApplications,
		models.CollectionMarks:        c.GetMarks,
		models.CollectionAdmins:       c.GetAdmins,
	}
	for name, read := range reads {
		res := read(ctx)
		require.Equal(t, SourceLocal, res.Source, name)
		records, ok := res.Records()
		require.True(t, ok)
		require.Equal(t, seeded[name], records, name)
	}
	require.Equal(t, before, r.callCount(), "offline reads must not reach the remote")
}

func TestProbeFailureStaysOffline(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"non-success status", &remote.StatusError{StatusCode: http.StatusServiceUnavailable, Message: "down"}},
		{"transport error", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRemote{handler: func(string, string, any) (string, error) { return "", tt.err }}
			c, _ := newTestClient(t, r)
			require.False(t, c.Wait(context.Background()))

			// the remote recovering does not flip the decision
			r.setHandler(healthy)
			before := r.callCount()
			res := c.GetCenters(context.Background())
			require.Equal(t, SourceLocal, res.Source)
			require.False(t, c.Online())
			require.Equal(t, before, r.callCount())
		})
	}
}

func TestReachableDespiteUnusableBody(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"empty body", &remote.BodyError{StatusCode: http.StatusOK, Err: remote.ErrEmptyBody}},
		{"error field", &remote.BodyError{StatusCode: http.StatusOK, Err: &remote.StatusError{StatusCode: http.StatusOK, Message: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRemote{handler: func(string, string, any) (string, error) { return "", tt.err }}
			c, _ := newTestClient(t, r)
			require.True(t, c.Wait(context.Background()))

			// the same body on a regular call is still a failure
			res := c.GetAdmins(context.Background())
			require.True(t, res.FellBack())
		})
	}
}

func TestReachableServerWithNonJSONSuccess(t *testing.T) {
	for _, body := range []string{"", "<html>ok</html>", `{"error":"x"}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			local := localstore.NewCollections(localstore.NewMemory(), nil)
			c := New(remote.New(srv.URL, time.Second), local, WithProbeTimeout(time.Second))
			require.True(t, c.Wait(context.Background()))
		})
	}
}

func TestLargeNumericIDMirroredExactly(t *testing.T) {
	c, local, _ := newOnlineClient(t, func(method, path string, body any) (string, error) {
		return `{"id":9007199254740993,"name":"Big"}`, nil
	})
	ctx := context.Background()

	res := c.CreateStudent(ctx, models.Record{"name": "Big"})
	require.True(t, res.Mirrored)
	require.Equal(t, "9007199254740993", res.ID())

	stored, err := local.ReadLocal(ctx, models.CollectionStudents)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, json.Number("9007199254740993"), stored[0]["id"])
}

func TestCreateCenterMirrorsRemoteResult(t *testing.T) {
	c, local, r := newOnlineClient(t, func(method, path string, body any) (string, error) {
		if method == "POST" && path == "/centers" {
			return `{"id":1,"name":"X"}`, nil
		}
		return `[]`, nil
	})
	ctx := context.Background()

	res := c.CreateCenter(ctx, models.Record{"name": "X"})
	require.Equal(t, SourceRemote, res.Source)
	require.True(t, res.Mirrored)
	require.NoError(t, res.Err)
	require.Equal(t, map[string]any{"id": json.Number("1"), "name": "X"}, res.Value)
	require.Equal(t, "1", res.ID())

	records, err := local.ReadLocal(ctx, models.CollectionCenters)
	require.NoError(t, err)
	require.Equal(t, []models.Record{{"id": json.Number("1"), "name": "X"}}, records)

	require.Equal(t, remoteCall{method: "POST", path: "/centers", body: models.Record{"name": "X"}}, r.calls[len(r.calls)-1])
}

func TestCreateStudentRemoteFailureFallsBack(t *testing.T) {
	c, local, _ := newOnlineClient(t, func(method, path string, body any) (string, error) {
		return "", &remote.StatusError{StatusCode: http.StatusInternalServerError, Message: "db down"}
	})
	ctx := context.Background()
	prior := models.Record{"id": "s0", "name": "Existing"}
	_, err := local.AppendLocal(ctx, models.CollectionStudents, prior)
	require.NoError(t, err)

	res := c.CreateStudent(ctx, models.Record{"name": "New"})
	require.Equal(t, SourceLocal, res.Source)
	require.True(t, res.FellBack())
	require.False(t, res.Mirrored)
	var se *remote.StatusError
	require.True(t, errors.As(res.Err, &se))
	require.Equal(t, http.StatusInternalServerError, se.StatusCode)
	require.Empty(t, res.ID())

	records, ok := res.Records()
	require.True(t, ok)
	require.Equal(t, []models.Record{prior}, records)

	stored, err := local.ReadLocal(ctx, models.CollectionStudents)
	require.NoError(t, err)
	require.Equal(t, []models.Record{prior}, stored)
}

func TestCreateWithoutIdentifierIsNotMirrored(t *testing.T) {
	for _, body := range []string{
		`{"name":"X"}`,
		`{"id":null,"name":"X"}`,
		`{"id":"","name":"X"}`,
		`{"id":0,"name":"X"}`,
		`{"id":false}`,
		`[{"id":1}]`,
		`"ok"`,
	} {
		t.Run(body, func(t *testing.T) {
			c, local, _ := newOnlineClient(t, func(string, string, any) (string, error) { return body, nil })
			ctx := context.Background()

			res := c.CreateApplication(ctx, models.Record{"name": "X"})
			require.Equal(t, SourceRemote, res.Source)
			require.False(t, res.Mirrored)

			stored, err := local.ReadLocal(ctx, models.CollectionApplications)
			require.NoError(t, err)
			require.Empty(t, stored)
		})
	}
}

func TestSequentialCreateMarksKeepCallOrder(t *testing.T) {
	var mu sync.Mutex
	next := 0
	c, local, _ := newOnlineClient(t, func(method, path string, body any) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		data, _ := json.Marshal(map[string]any{"id": next, "subject": body.(models.Record)["subject"]})
		return string(data), nil
	})
	ctx := context.Background()

	first := c.CreateMark(ctx, models.Record{"subject": "maths"})
	second := c.CreateMark(ctx, models.Record{"subject": "physics"})
	require.True(t, first.Mirrored)
	require.True(t, second.Mirrored)

	stored, err := local.ReadLocal(ctx, models.CollectionMarks)
	require.NoError(t, err)
	require.Equal(t, []models.Record{
		{"id": json.Number("1"), "subject": "maths"},
		{"id": json.Number("2"), "subject": "physics"},
	}, stored)
}

func TestRepeatedCreateMirrorsEachTime(t *testing.T) {
	c, local, _ := newOnlineClient(t, func(string, string, any) (string, error) { return `{"id":"dup"}`, nil })
	ctx := context.Background()

	c.CreateCenter(ctx, models.Record{})
	c.CreateCenter(ctx, models.Record{})

	stored, err := local.ReadLocal(ctx, models.CollectionCenters)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestOnlineReadReturnsRemoteBodyUnchanged(t *testing.T) {
	c, local, _ := newOnlineClient(t, func(method, path string, body any) (string, error) {
		return `[{"id":1,"name":"Remote"},{"id":2,"tags":["a"]}]`, nil
	})
	ctx := context.Background()
	_, err := local.AppendLocal(ctx, models.CollectionCenters, models.Record{"id": "local"})
	require.NoError(t, err)

	res := c.GetCenters(ctx)
	require.Equal(t, SourceRemote, res.Source)
	require.Equal(t, []any{
		map[string]any{"id": json.Number("1"), "name": "Remote"},
		map[string]any{"id": json.Number("2"), "tags": []any{"a"}},
	}, res.Value)

	// reads never mirror
	stored, err := local.ReadLocal(ctx, models.CollectionCenters)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestUndecodableRemoteBodyFallsBack(t *testing.T) {
	c, _, _ := newOnlineClient(t, func(string, string, any) (string, error) { return `{not json`, nil })

	res := c.GetMarks(context.Background())
	require.True(t, res.FellBack())
	records, ok := res.Records()
	require.True(t, ok)
	require.Empty(t, records)
}

func TestLoginsAreNeverMirrored(t *testing.T) {
	var bodies []any
	c, local, _ := newOnlineClient(t, func(method, path string, body any) (string, error) {
		bodies = append(bodies, body)
		return `{"id":"u1","role":"admin"}`, nil
	})
	ctx := context.Background()

	require.Equal(t, "u1", c.AdminLogin(ctx, "a@x.org", "pw").ID())
	require.Equal(t, "u1", c.CenterLogin(ctx, "c@x.org", "pw").ID())
	require.Equal(t, "u1", c.StudentLogin(ctx, "REG-1", "2004-05-06").ID())

	require.Equal(t, []any{
		models.EmailCredentials{Email: "a@x.org", Password: "pw"},
		models.EmailCredentials{Email: "c@x.org", Password: "pw"},
		models.StudentCredentials{RegistrationID: "REG-1", DateOfBirth: "2004-05-06"},
	}, bodies)

	counts, err := local.Counts(ctx)
	require.NoError(t, err)
	for name, n := range counts {
		require.Zero(t, n, name)
	}
}

func TestLoginRejectedFallsBackToEmpty(t *testing.T) {
	c, _, _ := newOnlineClient(t, func(string, string, any) (string, error) {
		return "", &remote.StatusError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"}
	})

	res := c.StudentLogin(context.Background(), "REG-1", "2000-01-01")
	require.True(t, res.FellBack())
	require.ErrorIs(t, res.Err, remote.ErrUnauthorized)
	records, ok := res.Records()
	require.True(t, ok)
	require.Empty(t, records)
}

func TestOfflineCreateReturnsListingAndDoesNotMirror(t *testing.T) {
	c, local, r := newOfflineClient(t)
	ctx := context.Background()
	before := r.callCount()

	res := c.CreateCenter(ctx, models.Record{"name": "X"})
	require.Equal(t, SourceLocal, res.Source)
	require.False(t, res.Mirrored)
	require.Equal(t, before, r.callCount())

	stored, err := local.ReadLocal(ctx, models.CollectionCenters)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestCallsWaitForProbe(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeRemote{handler: healthy, probeGate: gate}
	c, _ := newTestClient(t, r)

	done := make(chan Result, 1)
	go func() { done <- c.GetCenters(context.Background()) }()

	select {
	case <-done:
		t.Fatal("call completed before the probe resolved")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case res := <-done:
		require.Equal(t, SourceRemote, res.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete after probe")
	}
	require.True(t, c.Online())
}

func TestCallContextEndsBeforeProbe(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeRemote{handler: healthy, probeGate: gate}
	c, _ := newTestClient(t, r)
	t.Cleanup(func() { close(gate) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := c.GetCenters(ctx)
	require.Equal(t, SourceLocal, res.Source)
	require.NoError(t, res.Err)
}

func TestReprobe(t *testing.T) {
	c, _, r := newOfflineClient(t)
	ctx := context.Background()

	r.setHandler(healthy)
	require.True(t, c.Reprobe(ctx))
	require.Equal(t, SourceRemote, c.GetCenters(ctx).Source)

	r.setHandler(unreachable)
	require.False(t, c.Reprobe(ctx))
	require.Equal(t, SourceLocal, c.GetCenters(ctx).Source)
}

func TestEndpointCollections(t *testing.T) {
	for _, name := range models.AllCollections {
		got, ok := EndpointFor(name).Collection()
		require.True(t, ok)
		require.Equal(t, name, got)
	}
	for _, ep := range []Endpoint{EndpointAuthAdmin, EndpointAuthCenter, EndpointAuthStudent} {
		_, ok := ep.Collection()
		require.False(t, ok)
	}
}
