package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/openweathermap-agent/internal/store"
	"github.com/i474232898/openweathermap-agent/internal/weather"
)

type stubFetcher struct {
	resp  weather.Response
	err   error
	calls int
}

func (f *stubFetcher) FetchCurrentWeather(context.Context, weather.CurrentWeatherQuery) (weather.Response, error) {
	f.calls++
	return f.resp, f.err
}

func serviceOptions() weather.Options {
	opts := weather.DefaultOptions()
	opts[weather.OptionType] = "current_weather"
	opts[weather.OptionToken] = "abc123"
	opts[weather.OptionLat] = "48.8667"
	opts[weather.OptionLon] = "2.3333"
	return opts
}

func newTestService(t *testing.T) (*weather.Service, *stubFetcher, *store.MemoryStore) {
	t.Helper()
	f := &stubFetcher{resp: weather.Response{StatusCode: 200, Body: []byte(`{"cod":200}`)}}
	st := store.NewMemoryStore(100, 0)
	svc := weather.NewService("owm-1", st, f, zap.NewNop())
	require.NoError(t, svc.LoadOptions(context.Background(), serviceOptions()))
	return svc, f, st
}

func TestServiceLoadOptionsPersistsFallback(t *testing.T) {
	svc, _, st := newTestService(t)

	saved, err := st.LoadOptions(context.Background(), "owm-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", saved.String(weather.OptionToken))
	assert.Equal(t, serviceOptions(), svc.Options())
}

func TestServiceLoadOptionsPrefersPersisted(t *testing.T) {
	st := store.NewMemoryStore(0, 0)
	persisted := serviceOptions()
	persisted[weather.OptionToken] = "from-store"
	require.NoError(t, st.SaveOptions(context.Background(), "owm-1", persisted))

	svc := weather.NewService("owm-1", st, &stubFetcher{}, nil)
	require.NoError(t, svc.LoadOptions(context.Background(), serviceOptions()))
	assert.Equal(t, "from-store", svc.Options().String(weather.OptionToken))
}

func TestServiceLoadOptionsHoldsInvalidFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0, 0)
	f := &stubFetcher{resp: weather.Response{StatusCode: 200, Body: []byte(`{}`)}}
	svc := weather.NewService("owm-1", st, f, nil)

	require.NoError(t, svc.LoadOptions(ctx, weather.DefaultOptions()))
	assert.False(t, svc.Configured())
	assert.Equal(t, weather.DefaultOptions(), svc.Options())

	_, err := st.LoadOptions(ctx, "owm-1")
	assert.ErrorIs(t, err, weather.ErrNotFound, "invalid options are not persisted")

	assert.ErrorIs(t, svc.Check(ctx), weather.ErrNotConfigured)
	assert.ErrorIs(t, svc.Receive(ctx, []weather.Event{{ID: uuid.New()}}), weather.ErrNotConfigured)
	_, err = svc.DryRun(ctx, nil)
	assert.ErrorIs(t, err, weather.ErrNotConfigured)
	working, err := svc.Working(ctx)
	require.NoError(t, err)
	assert.False(t, working)
	assert.Zero(t, f.calls)

	errs, err := svc.UpdateOptions(ctx, serviceOptions())
	require.NoError(t, err)
	require.Nil(t, errs)
	assert.True(t, svc.Configured())
	require.NoError(t, svc.Check(ctx))
	assert.Equal(t, 1, f.calls)
}

func TestServiceLoadOptionsRejectsInvalidPersisted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(0, 0)
	require.NoError(t, st.SaveOptions(ctx, "owm-1", weather.DefaultOptions()))

	svc := weather.NewService("owm-1", st, &stubFetcher{}, nil)
	err := svc.LoadOptions(ctx, serviceOptions())
	require.Error(t, err)

	var verrs weather.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has(weather.OptionToken))
	assert.False(t, svc.Configured())
}

func TestServiceUpdateOptions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bad := serviceOptions()
	delete(bad, weather.OptionLat)
	errs, err := svc.UpdateOptions(ctx, bad)
	require.NoError(t, err)
	assert.True(t, errs.Has(weather.OptionLat))
	assert.Equal(t, "48.8667", svc.Options().String(weather.OptionLat), "old options stay in effect")

	good := serviceOptions()
	good[weather.OptionLat] = "37.7771"
	errs, err = svc.UpdateOptions(ctx, good)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, "37.7771", svc.Options().String(weather.OptionLat))
}

func TestServiceCheckRecordsEventAndLogs(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Check(ctx))
	assert.Equal(t, 1, f.calls)

	events, err := svc.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "owm-1", events[0].AgentID)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.JSONEq(t, `{"cod":200}`, string(events[0].Payload))

	logs, err := svc.Logs(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "request status : 200", logs[0].Message)

	working, err := svc.Working(ctx)
	require.NoError(t, err)
	assert.True(t, working)
}

func TestServiceCheckFailureMarksUnhealthy(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Check(ctx))

	f.err = errors.New("connection reset")
	require.Error(t, svc.Check(ctx))

	logs, err := svc.Logs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, weather.LogLevelError, logs[0].Level)
	assert.Contains(t, logs[0].Message, "connection reset")

	working, err := svc.Working(ctx)
	require.NoError(t, err)
	assert.False(t, working)
}

func TestServiceWorkingHonoursPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })
	require.NoError(t, svc.Check(ctx))

	svc.WithClock(func() time.Time { return now.Add(47 * time.Hour) })
	working, err := svc.Working(ctx)
	require.NoError(t, err)
	assert.True(t, working)

	svc.WithClock(func() time.Time { return now.Add(49 * time.Hour) })
	working, err = svc.Working(ctx)
	require.NoError(t, err)
	assert.False(t, working)
}

func TestServiceReceive(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	events := []weather.Event{
		{ID: uuid.New(), Payload: json.RawMessage(`{"a":1}`)},
		{ID: uuid.New(), Payload: json.RawMessage(`{"a":2}`)},
	}
	require.NoError(t, svc.Receive(ctx, events))
	assert.Equal(t, 2, f.calls)

	stored, err := svc.Events(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestServiceDryRunPersistsNothing(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.DryRun(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
	require.Len(t, res.Events, 1)
	assert.JSONEq(t, `{"cod":200}`, string(res.Events[0].Payload))
	require.NotEmpty(t, res.Logs)
	assert.Empty(t, res.Error)

	stored, err := svc.Events(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
	logs, err := svc.Logs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestServiceDryRunReportsError(t *testing.T) {
	svc, f, _ := newTestService(t)
	f.err = errors.New("no route to host")

	res, err := svc.DryRun(context.Background(), &weather.Event{ID: uuid.New(), Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "no route to host")
	assert.Empty(t, res.Events)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"took":"`)
}
