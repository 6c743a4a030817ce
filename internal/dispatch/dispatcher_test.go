package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-junction/internal/adapters"
	apperrors "ai-junction/internal/common/errors"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

// ==========================
// Fixtures
// ==========================

type stubAdapter struct {
	calls  atomic.Int32
	block  bool
	err    error
	closed atomic.Bool
}

func (s *stubAdapter) run(ctx context.Context, op string) (any, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"op": op}, nil
}

func (s *stubAdapter) ProcessInput(ctx context.Context, _ models.AnalyzedRequest) (any, error) {
	return s.run(ctx, "process_input")
}

func (s *stubAdapter) GenerateResponse(ctx context.Context, _ models.AnalyzedRequest) (any, error) {
	return s.run(ctx, "generate_response")
}

func (s *stubAdapter) Execute(ctx context.Context, _ models.AnalyzedRequest) (any, error) {
	return s.run(ctx, "execute")
}

func (s *stubAdapter) Close() error {
	s.closed.Store(true)
	return nil
}

// countingFactory builds one shared stub and counts constructions.
type countingFactory struct {
	count   atomic.Int32
	adapter *stubAdapter
	delay   time.Duration
	entered chan struct{}
	release chan struct{}
	err     error
}

func (f *countingFactory) build(ctx context.Context, _ models.BackendDescriptor) (adapters.Adapter, error) {
	f.count.Add(1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.adapter, nil
}

func newTestDispatcher(t *testing.T, factory *countingFactory, timeout time.Duration) *Dispatcher {
	t.Helper()
	modules := adapters.NewRegistry()
	if factory != nil {
		require.NoError(t, modules.Register("stub", factory.build))
	}
	return New(Config{Timeout: timeout}, modules, nil, logger.NewTestLogger(t))
}

func descriptor(id string, typ models.BackendType) models.BackendDescriptor {
	return models.BackendDescriptor{
		ID:               id,
		Name:             id,
		Type:             typ,
		ConnectionConfig: map[string]interface{}{"module": "stub"},
	}
}

var request = models.AnalyzedRequest{OriginalInput: "hello", Keywords: []string{"hello"}}

// ==========================
// Routing
// ==========================

func TestDispatch_RoutesByType(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		typ models.BackendType
		op  string
	}{
		{models.BackendTypeBot, "process_input"},
		{models.BackendTypeLocalAI, "generate_response"},
		{models.BackendTypeCustomAI, "execute"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			factory := &countingFactory{adapter: &stubAdapter{}}
			d := newTestDispatcher(t, factory, time.Second)

			out, err := d.Dispatch(context.Background(), descriptor("b-1", tt.typ), request)

			require.NoError(t, err)
			assert.Equal(t, map[string]any{"op": tt.op}, out)
			assert.True(t, d.Connected("b-1"))
		})
	}
}

func TestDispatch_UnsupportedType(t *testing.T) {
	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)

	_, err := d.Dispatch(context.Background(), descriptor("b-1", "hologram"), request)

	assert.True(t, stderrors.Is(err, apperrors.ErrUnsupportedType))
	assert.False(t, d.Connected("b-1"))
	assert.Equal(t, int32(0), factory.count.Load())
}

func TestDispatch_AnyIsNotDispatchable(t *testing.T) {
	d := newTestDispatcher(t, nil, time.Second)

	_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeAny), request)

	assert.Equal(t, apperrors.ErrCodeUnsupportedType, apperrors.CodeOf(err))
}

// ==========================
// Connection cache
// ==========================

func TestDispatch_ReusesConnection(t *testing.T) {
	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)
	desc := descriptor("b-1", models.BackendTypeBot)

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background(), desc, request)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), factory.count.Load())
	assert.Equal(t, int32(3), factory.adapter.calls.Load())
	assert.Equal(t, 1, d.ActiveConnections())
}

func TestDispatch_ConcurrentFirstUseEstablishesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := &countingFactory{adapter: &stubAdapter{}, delay: 50 * time.Millisecond}
	d := newTestDispatcher(t, factory, 5*time.Second)
	desc := descriptor("b-1", models.BackendTypeBot)

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), desc, request)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), factory.count.Load())
	assert.Equal(t, int32(callers), factory.adapter.calls.Load())
}

func TestDispatch_ConcurrentDistinctIDs(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, 5*time.Second)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), descriptor(id, models.BackendTypeBot), request)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(4), factory.count.Load())
	assert.Equal(t, 4, d.ActiveConnections())
}

func TestDispatch_ModuleResolutionFailures(t *testing.T) {
	t.Run("unknown module", func(t *testing.T) {
		d := newTestDispatcher(t, nil, time.Second)

		_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeBot), request)

		assert.Equal(t, apperrors.ErrCodeModuleResolutionFailed, apperrors.CodeOf(err))
		assert.False(t, d.Connected("b-1"))
	})

	t.Run("factory error is not cached", func(t *testing.T) {
		factory := &countingFactory{err: stderrors.New("no weights")}
		d := newTestDispatcher(t, factory, time.Second)
		desc := descriptor("b-1", models.BackendTypeLocalAI)

		_, err := d.Dispatch(context.Background(), desc, request)
		assert.Equal(t, apperrors.ErrCodeModuleResolutionFailed, apperrors.CodeOf(err))

		_, err = d.Dispatch(context.Background(), desc, request)
		assert.Equal(t, apperrors.ErrCodeModuleResolutionFailed, apperrors.CodeOf(err))
		assert.Equal(t, int32(2), factory.count.Load())
		assert.False(t, d.Connected("b-1"))
	})

	t.Run("module falls back to id", func(t *testing.T) {
		factory := &countingFactory{adapter: &stubAdapter{}}
		d := newTestDispatcher(t, factory, time.Second)
		desc := models.BackendDescriptor{ID: "stub", Type: models.BackendTypeBot}

		_, err := d.Dispatch(context.Background(), desc, request)

		require.NoError(t, err)
		assert.Equal(t, int32(1), factory.count.Load())
	})
}

func TestDispatch_StaleDescriptorReusesConnection(t *testing.T) {
	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)
	desc := descriptor("b-1", models.BackendTypeBot)

	_, err := d.Dispatch(context.Background(), desc, request)
	require.NoError(t, err)

	desc.ConnectionConfig["module"] = "something-else"
	_, err = d.Dispatch(context.Background(), desc, request)

	require.NoError(t, err)
	assert.Equal(t, int32(1), factory.count.Load())
}

func TestDispatch_TypeChangeReestablishesConnection(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`"remote"`))
	}))
	defer server.Close()

	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)
	desc := descriptor("b-1", models.BackendTypeAPI)
	desc.ConnectionConfig["endpoint"] = server.URL

	out, err := d.Dispatch(context.Background(), desc, request)
	require.NoError(t, err)
	assert.Equal(t, "remote", out)

	desc.Type = models.BackendTypeBot
	require.NotPanics(t, func() {
		out, err = d.Dispatch(context.Background(), desc, request)
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"op": "process_input"}, out)
	assert.Equal(t, int32(1), factory.count.Load())

	desc.Type = models.BackendTypeAPI
	out, err = d.Dispatch(context.Background(), desc, request)
	require.NoError(t, err)
	assert.Equal(t, "remote", out)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, d.ActiveConnections())
}

// ==========================
// Eviction
// ==========================

func TestEvict_FailsFast(t *testing.T) {
	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)
	desc := descriptor("b-1", models.BackendTypeBot)

	_, err := d.Dispatch(context.Background(), desc, request)
	require.NoError(t, err)

	d.Evict("b-1")

	_, err = d.Dispatch(context.Background(), desc, request)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	assert.False(t, d.Connected("b-1"))
	assert.Equal(t, int32(1), factory.count.Load())
}

func TestEvict_UnknownIDIsHarmless(t *testing.T) {
	d := newTestDispatcher(t, nil, time.Second)

	assert.NotPanics(t, func() { d.Evict("never-seen") })
	assert.Equal(t, 0, d.ActiveConnections())
}

func TestEvict_DuringEstablishmentDiscardsConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := &countingFactory{
		adapter: &stubAdapter{},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	d := newTestDispatcher(t, factory, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeBot), request)
		done <- err
	}()

	<-factory.entered
	d.Evict("b-1")
	close(factory.release)

	err := <-done
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	assert.False(t, d.Connected("b-1"))
	assert.Equal(t, int32(0), factory.adapter.calls.Load())
}

func TestEvict_InFlightDispatchFinishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &slowAdapter{started: make(chan struct{}), release: make(chan struct{})}
	modules := adapters.NewRegistry()
	require.NoError(t, modules.Register("slow", func(context.Context, models.BackendDescriptor) (adapters.Adapter, error) {
		return slow, nil
	}))
	d := New(Config{Timeout: 5 * time.Second}, modules, nil, logger.NewTestLogger(t))
	desc := models.BackendDescriptor{ID: "b-1", Type: models.BackendTypeBot, ConnectionConfig: map[string]interface{}{"module": "slow"}}

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), desc, request)
		done <- err
	}()

	<-slow.started
	d.Evict("b-1")
	close(slow.release)

	assert.NoError(t, <-done)
	assert.False(t, d.Connected("b-1"))
}

type slowAdapter struct {
	adapters.Unimplemented
	started chan struct{}
	release chan struct{}
}

func (s *slowAdapter) ProcessInput(context.Context, models.AnalyzedRequest) (any, error) {
	close(s.started)
	<-s.release
	return "late", nil
}

// ==========================
// Failures and timeouts
// ==========================

func TestDispatch_AdapterErrorIsDispatchFailed(t *testing.T) {
	boom := stderrors.New("model crashed")
	factory := &countingFactory{adapter: &stubAdapter{err: boom}}
	d := newTestDispatcher(t, factory, time.Second)

	_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeCustomAI), request)

	assert.Equal(t, apperrors.ErrCodeDispatchFailed, apperrors.CodeOf(err))
	assert.True(t, stderrors.Is(err, boom))
	assert.False(t, apperrors.AsStandard(err).Retryable)
	assert.True(t, d.Connected("b-1"), "a failed call keeps the connection")
}

func TestDispatch_AdapterErrorRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"provider overloaded", &adapters.AdapterError{Module: "stub", Status: 503}, true},
		{"provider rate limited", &adapters.AdapterError{Module: "stub", Status: 429}, true},
		{"process killed", &adapters.AdapterError{Module: "stub", Temporary: true}, true},
		{"bad request", &adapters.AdapterError{Module: "stub", Status: 400}, false},
		{"plain error", stderrors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &countingFactory{adapter: &stubAdapter{err: tt.err}}
			d := newTestDispatcher(t, factory, time.Second)

			_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeBot), request)

			stdErr := apperrors.AsStandard(err)
			assert.Equal(t, apperrors.ErrCodeDispatchFailed, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestDispatch_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := &countingFactory{adapter: &stubAdapter{block: true}}
	d := newTestDispatcher(t, factory, 50*time.Millisecond)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeLocalAI), request)

	assert.Equal(t, apperrors.ErrCodeDispatchTimeout, apperrors.CodeOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, d.Connected("b-1"))
}

func TestDispatch_CallerDeadlineDuringEstablishment(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := &countingFactory{adapter: &stubAdapter{}, delay: 200 * time.Millisecond}
	modules := adapters.NewRegistry()
	require.NoError(t, modules.Register("stub", factory.build))
	// The establishment logs after the caller returns.
	d := New(Config{Timeout: 5 * time.Second}, modules, nil, logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Dispatch(ctx, descriptor("b-1", models.BackendTypeBot), request)
	assert.Equal(t, apperrors.ErrCodeDispatchTimeout, apperrors.CodeOf(err))

	// The shared establishment outlives the abandoned caller.
	require.Eventually(t, func() bool { return d.Connected("b-1") }, 2*time.Second, 10*time.Millisecond)
}

// ==========================
// Remote api
// ==========================

func apiDescriptor(endpoint, key string) models.BackendDescriptor {
	return models.BackendDescriptor{
		ID:   "api-1",
		Type: models.BackendTypeAPI,
		ConnectionConfig: map[string]interface{}{
			"endpoint": endpoint,
			"api_key":  key,
		},
	}
}

func TestDispatch_RemoteAPI(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var req models.AnalyzedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]any{"answer": req.OriginalInput})
	}))
	defer server.Close()

	d := newTestDispatcher(t, nil, time.Second)

	out, err := d.Dispatch(context.Background(), apiDescriptor(server.URL, "k1"), request)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": "hello"}, out)
	assert.Equal(t, "Bearer k1", auth.Load())

	// Rotated key on a cached connection is picked up from the descriptor.
	_, err = d.Dispatch(context.Background(), apiDescriptor(server.URL, "k2"), request)
	require.NoError(t, err)
	assert.Equal(t, "Bearer k2", auth.Load())
}

func TestDispatch_RemoteAPIEndpointIsCached(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsA.Add(1)
		_, _ = w.Write([]byte(`"a"`))
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsB.Add(1)
		_, _ = w.Write([]byte(`"b"`))
	}))
	defer serverB.Close()

	d := newTestDispatcher(t, nil, time.Second)

	_, err := d.Dispatch(context.Background(), apiDescriptor(serverA.URL, "k"), request)
	require.NoError(t, err)
	out, err := d.Dispatch(context.Background(), apiDescriptor(serverB.URL, "k"), request)
	require.NoError(t, err)

	assert.Equal(t, "a", out)
	assert.Equal(t, int32(2), hitsA.Load())
	assert.Equal(t, int32(0), hitsB.Load())
}

func TestDispatch_RemoteAPIErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		d := newTestDispatcher(t, nil, time.Second)
		_, err := d.Dispatch(context.Background(), apiDescriptor(server.URL, "k"), request)

		stdErr := apperrors.AsStandard(err)
		assert.Equal(t, apperrors.ErrCodeDispatchFailed, stdErr.Code)
		assert.Equal(t, http.StatusBadGateway, stdErr.Metadata["status"])
		assert.True(t, stdErr.Retryable)
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		d := newTestDispatcher(t, nil, time.Second)
		_, err := d.Dispatch(context.Background(), apiDescriptor(url, "k"), request)

		assert.Equal(t, apperrors.ErrCodeDispatchFailed, apperrors.CodeOf(err))
	})

	t.Run("deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		d := newTestDispatcher(t, nil, 50*time.Millisecond)
		_, err := d.Dispatch(context.Background(), apiDescriptor(server.URL, "k"), request)

		assert.Equal(t, apperrors.ErrCodeDispatchTimeout, apperrors.CodeOf(err))
	})

	t.Run("empty body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		d := newTestDispatcher(t, nil, time.Second)
		_, err := d.Dispatch(context.Background(), apiDescriptor(server.URL, "k"), request)

		stdErr := apperrors.AsStandard(err)
		assert.Equal(t, apperrors.ErrCodeDispatchFailed, stdErr.Code)
		assert.True(t, stderrors.Is(err, errEmptyResponse))
		assert.False(t, stdErr.Retryable)
	})

	t.Run("body is not json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>ok</html>"))
		}))
		defer server.Close()

		d := newTestDispatcher(t, nil, time.Second)
		_, err := d.Dispatch(context.Background(), apiDescriptor(server.URL, "k"), request)

		assert.Equal(t, apperrors.ErrCodeDispatchFailed, apperrors.CodeOf(err))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		d := newTestDispatcher(t, nil, time.Second)
		_, err := d.Dispatch(context.Background(), apiDescriptor("", "k"), request)

		assert.Equal(t, apperrors.ErrCodeModuleResolutionFailed, apperrors.CodeOf(err))
		assert.False(t, d.Connected("api-1"))
	})
}

// ==========================
// Lifecycle and tracing
// ==========================

func TestClose_ClosesAdapters(t *testing.T) {
	factory := &countingFactory{adapter: &stubAdapter{}}
	d := newTestDispatcher(t, factory, time.Second)

	_, err := d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeBot), request)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.True(t, factory.adapter.closed.Load())
	assert.Equal(t, 0, d.ActiveConnections())
}

func TestDispatch_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	factory := &countingFactory{adapter: &stubAdapter{err: stderrors.New("x")}}
	modules := adapters.NewRegistry()
	require.NoError(t, modules.Register("stub", factory.build))
	d := New(Config{Timeout: time.Second, Tracer: provider.Tracer("test")}, modules, nil, logger.NewTestLogger(t))

	_, _ = d.Dispatch(context.Background(), descriptor("b-1", models.BackendTypeBot), request)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "dispatch", spans[0].Name())
	assert.Equal(t, "DISPATCH_FAILED", spans[0].Status().Description)
}
