// Package fallback routes record operations to the remote API when it is
// reachable and to the local store otherwise. Successful remote creates are
// mirrored into the local store so later offline reads can see them.
//
// Reachability is probed once, when the client is constructed. Every
// operation waits for that probe before choosing a path, so early calls are
// never misrouted. The decision then holds for the client's lifetime unless
// the caller asks for Reprobe.
package fallback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcus/imtti/internal/localstore"
	"github.com/marcus/imtti/internal/metrics"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/remote"
)

// DefaultProbeTimeout bounds the startup reachability probe.
const DefaultProbeTimeout = 10 * time.Second

// Client is the offline-capable records client.
type Client struct {
	remote       remote.Remote
	local        *localstore.Collections
	logger       *slog.Logger
	probeTimeout time.Duration

	ready   chan struct{}
	online  atomic.Bool
	probeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for probe and fallback messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProbeTimeout bounds each reachability probe. Zero disables the bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probeTimeout = d }
}

// New creates a client and starts the reachability probe in the background.
// The client is usable immediately; operations wait for the probe.
func New(r remote.Remote, local *localstore.Collections, opts ...Option) *Client {
	c := &Client{
		remote:       r,
		local:        local,
		logger:       slog.Default(),
		probeTimeout: DefaultProbeTimeout,
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go func() {
		defer close(c.ready)
		c.probe(context.Background())
	}()
	return c
}

// Ready is closed once the startup probe has resolved.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until the startup probe resolves and reports whether the remote
// is reachable. If ctx ends first the client is treated as offline.
func (c *Client) Wait(ctx context.Context) bool {
	select {
	case <-c.ready:
		return c.online.Load()
	default:
	}
	select {
	case <-c.ready:
		return c.online.Load()
	case <-ctx.Done():
		return false
	}
}

// Online reports the current connectivity decision without waiting. It is
// false until the startup probe succeeds.
func (c *Client) Online() bool {
	return c.online.Load()
}

// Local returns the collections used for fallback reads and mirroring.
func (c *Client) Local() *localstore.Collections {
	return c.local
}

// Reprobe re-runs the reachability probe and returns the new decision.
func (c *Client) Reprobe(ctx context.Context) bool {
	c.Wait(ctx)
	c.probe(ctx)
	return c.online.Load()
}

func (c *Client) probe(ctx context.Context) {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	// Any HTTP success means reachable, whatever the body holds.
	_, err := c.remote.Do(ctx, string(MethodRead), string(EndpointAdmins), nil)
	var bodyErr *remote.BodyError
	if errors.As(err, &bodyErr) {
		c.logger.Debug("probe answered with an unusable body", "status", bodyErr.StatusCode, "err", err)
		err = nil
	}
	if err != nil {
		c.online.Store(false)
		metrics.ClientOnline.Set(0)
		metrics.ClientProbesTotal.WithLabelValues("offline").Inc()
		c.logger.Warn("api not available, using local store", "err", err)
		return
	}

	c.online.Store(true)
	metrics.ClientOnline.Set(1)
	metrics.ClientProbesTotal.WithLabelValues("online").Inc()
	c.logger.Info("api connected")
}

// Call dispatches one operation. Offline, it reads the endpoint's local
// collection without touching the network. Online, it calls the remote and
// returns the decoded body; any remote failure falls back to the local read.
// Call never fails: problems are reported in Result.Err. It does not write
// to the local store.
func (c *Client) Call(ctx context.Context, endpoint Endpoint, method Method, payload any) Result {
	if !c.Wait(ctx) {
		res := c.readLocal(ctx, endpoint)
		metrics.ClientCallsTotal.WithLabelValues(string(endpoint), metrics.SourceLocal).Inc()
		return res
	}

	start := time.Now()
	value, err := c.callRemote(ctx, endpoint, method, payload)
	metrics.ClientRemoteDuration.WithLabelValues(string(endpoint)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("api call failed, using local store",
			"endpoint", string(endpoint), "method", string(method), "err", err)
		metrics.ClientFallbacksTotal.WithLabelValues(string(endpoint)).Inc()
		metrics.ClientCallsTotal.WithLabelValues(string(endpoint), metrics.SourceLocal).Inc()

		res := c.readLocal(ctx, endpoint)
		res.Err = errors.Join(err, res.Err)
		return res
	}

	metrics.ClientCallsTotal.WithLabelValues(string(endpoint), metrics.SourceRemote).Inc()
	return Result{Value: value, Source: SourceRemote}
}

func (c *Client) callRemote(ctx context.Context, endpoint Endpoint, method Method, payload any) (any, error) {
	raw, err := c.remote.Do(ctx, string(method), string(endpoint), payload)
	if err != nil {
		return nil, err
	}
	var value any
	if err := models.DecodeJSON(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// readLocal never fails; store errors are logged and carried in Result.Err.
func (c *Client) readLocal(ctx context.Context, endpoint Endpoint) Result {
	res := Result{Value: []models.Record{}, Source: SourceLocal}

	name, ok := endpoint.Collection()
	if !ok || c.local == nil {
		return res
	}

	records, err := c.local.ReadLocal(context.WithoutCancel(ctx), name)
	if err != nil {
		c.logger.Error("read local store", "collection", string(name), "err", err)
		res.Err = err
	}
	res.Value = records
	return res
}

// Create writes record remotely and mirrors the result locally when, and only
// when, the result is an object carrying a non-empty id. Endpoints without a
// local collection are never mirrored.
func (c *Client) Create(ctx context.Context, endpoint Endpoint, record models.Record) Result {
	if record == nil {
		record = models.Record{}
	}
	res := c.Call(ctx, endpoint, MethodWrite, record)

	name, ok := endpoint.Collection()
	if !ok || c.local == nil {
		return res
	}
	created, ok := res.Record()
	if !ok {
		return res
	}
	if _, hasID := created.ID(); !hasID {
		return res
	}

	if _, err := c.local.AppendLocal(context.WithoutCancel(ctx), name, created); err != nil {
		c.logger.Error("mirror created record", "collection", string(name), "id", created.IDString(), "err", err)
		res.Err = errors.Join(res.Err, err)
		return res
	}
	metrics.ClientMirroredTotal.WithLabelValues(string(name)).Inc()
	res.Mirrored = true
	return res
}

// --- Centers ---

func (c *Client) GetCenters(ctx context.Context) Result {
	return c.Call(ctx, EndpointCenters, MethodRead, nil)
}

func (c *Client) CreateCenter(ctx context.Context, center models.Record) Result {
	return c.Create(ctx, EndpointCenters, center)
}

// --- Students ---

func (c *Client) GetStudents(ctx context.Context) Result {
	return c.Call(ctx, EndpointStudents, MethodRead, nil)
}

func (c *Client) CreateStudent(ctx context.Context, student models.Record) Result {
	return c.Create(ctx, EndpointStudents, student)
}

// --- Applications ---

func (c *Client) GetApplications(ctx context.Context) Result {
	return c.Call(ctx, EndpointApplications, MethodRead, nil)
}

func (c *Client) CreateApplication(ctx context.Context, application models.Record) Result {
	return c.Create(ctx, EndpointApplications, application)
}

// --- Marks ---

func (c *Client) GetMarks(ctx context.Context) Result {
	return c.Call(ctx, EndpointMarks, MethodRead, nil)
}

func (c *Client) CreateMark(ctx context.Context, mark models.Record) Result {
	return c.Create(ctx, EndpointMarks, mark)
}

// --- Admins ---

func (c *Client) GetAdmins(ctx context.Context) Result {
	return c.Call(ctx, EndpointAdmins, MethodRead, nil)
}

// --- Authentication (never cached locally) ---

// AdminLogin authenticates an administrator.
func (c *Client) AdminLogin(ctx context.Context, email, password string) Result {
	return c.Call(ctx, EndpointAuthAdmin, MethodWrite, models.EmailCredentials{Email: email, Password: password})
}

// CenterLogin authenticates a center account.
func (c *Client) CenterLogin(ctx context.Context, email, password string) Result {
	return c.Call(ctx, EndpointAuthCenter, MethodWrite, models.EmailCredentials{Email: email, Password: password})
}

// StudentLogin authenticates a student by registration id and date of birth.
func (c *Client) StudentLogin(ctx context.Context, registrationID, dateOfBirth string) Result {
	return c.Call(ctx, EndpointAuthStudent, MethodWrite, models.StudentCredentials{
		RegistrationID: registrationID,
		DateOfBirth:    dateOfBirth,
	})
}
