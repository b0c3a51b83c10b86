package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CurrentWeather(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, f.err
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu        sync.Mutex
	records   []Record
	findErr   error
	appendErr error
}

func (f *fakeStore) Append(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) FindByDate(ctx context.Context, date time.Time) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []Record
	for _, r := range f.records {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

const cloudsBody = `{"weather":[{"main":"Clouds","icon":"04d"}],"main":{"temp":282.15}}`

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func fixedClock(t *testing.T, s string) func() time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", s, err)
	}
	return func() time.Time { return ts }
}

func TestService_Resolve_CacheHitSkipsProvider(t *testing.T) {
	date := mustDate(t, "2024-11-15")
	store := &fakeStore{records: []Record{
		{Date: date, Reading: Reading{Condition: "Rain", Icon: "09d", Temperature: 280.0}},
	}}
	provider := &fakeProvider{body: cloudsBody}
	svc := NewService(store, provider)

	got, err := svc.Resolve(context.Background(), date)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Condition != "Rain" || got.Icon != "09d" || got.Temperature != 280.0 {
		t.Errorf("Resolve() = %+v, want stored Rain record", got)
	}
	if provider.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0 on cache hit", provider.Calls())
	}
}

func TestService_Resolve_CacheMissFetchesLiveDatedToday(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{body: cloudsBody}
	svc := NewService(store, provider, WithClock(fixedClock(t, "2024-11-20T09:30:00+09:00")))

	got, err := svc.Resolve(context.Background(), mustDate(t, "2024-11-15"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := Record{
		Date:    mustDate(t, "2024-11-20"),
		Reading: Reading{Condition: "Clouds", Icon: "04d", Temperature: 282.15},
	}
	if !got.Date.Equal(want.Date) || got.Reading != want.Reading {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
	if len(store.records) != 0 {
		t.Errorf("live record was persisted: %+v", store.records)
	}
}

func TestService_Resolve_TodayUsesClockZone(t *testing.T) {
	// 2024-11-15 23:30 UTC is already 2024-11-16 in Seoul.
	seoul := time.FixedZone("KST", 9*60*60)
	now := time.Date(2024, 11, 15, 23, 30, 0, 0, time.UTC).In(seoul)
	svc := NewService(&fakeStore{}, &fakeProvider{body: cloudsBody}, WithClock(func() time.Time { return now }))

	got, err := svc.Resolve(context.Background(), mustDate(t, "2024-11-16"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if FormatDate(got.Date) != "2024-11-16" {
		t.Errorf("record date = %s, want 2024-11-16", FormatDate(got.Date))
	}
}

func TestService_Resolve_FirstWriterWins(t *testing.T) {
	date := mustDate(t, "2024-11-15")
	store := &fakeStore{}
	for i, cond := range []string{"Clouds", "Rain", "Snow"} {
		rec := Record{Date: date, Reading: Reading{Condition: cond, Icon: fmt.Sprintf("0%dd", i+1), Temperature: float64(280 + i)}}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	svc := NewService(store, &fakeProvider{err: errors.New("must not be called")})

	for i := 0; i < 3; i++ {
		got, err := svc.Resolve(context.Background(), date)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Condition != "Clouds" {
			t.Errorf("Resolve() condition = %q, want earliest Clouds", got.Condition)
		}
	}
}

func TestService_Resolve_Errors(t *testing.T) {
	storeErr := errors.New("db down")

	tests := []struct {
		name     string
		store    *fakeStore
		provider *fakeProvider
		wantErr  error
	}{
		{
			name:     "transport failure",
			store:    &fakeStore{},
			provider: &fakeProvider{err: fmt.Errorf("%w: dial tcp: connection refused", ErrTransport)},
			wantErr:  ErrTransport,
		},
		{
			name:     "sentinel body",
			store:    &fakeStore{},
			provider: &fakeProvider{body: "failed to get response"},
			wantErr:  ErrParse,
		},
		{
			name:     "provider error payload",
			store:    &fakeStore{},
			provider: &fakeProvider{body: `{"cod":401,"message":"Invalid API key."}`},
			wantErr:  ErrParse,
		},
		{
			name:     "store failure",
			store:    &fakeStore{findErr: storeErr},
			provider: &fakeProvider{body: cloudsBody},
			wantErr:  storeErr,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.store, tc.provider)
			_, err := svc.Resolve(context.Background(), mustDate(t, "2024-11-15"))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestService_Refresh_AppendsTodaysRecord(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{body: cloudsBody}
	svc := NewService(store, provider, WithClock(fixedClock(t, "2024-11-15T01:00:00+09:00")))

	rec, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if FormatDate(rec.Date) != "2024-11-15" {
		t.Errorf("Refresh() date = %s, want 2024-11-15", FormatDate(rec.Date))
	}
	if len(store.records) != 1 {
		t.Fatalf("store records = %d, want 1", len(store.records))
	}

	// A create later the same day is served from the refreshed row.
	got, err := svc.Resolve(context.Background(), mustDate(t, "2024-11-15"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Condition != "Clouds" {
		t.Errorf("Resolve() condition = %q, want Clouds", got.Condition)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
}

func TestService_Refresh_FailureWritesNothing(t *testing.T) {
	appendErr := errors.New("insert failed")

	tests := []struct {
		name     string
		store    *fakeStore
		provider *fakeProvider
		wantErr  error
	}{
		{"transport", &fakeStore{}, &fakeProvider{err: ErrTransport}, ErrTransport},
		{"parse", &fakeStore{}, &fakeProvider{body: `{"weather":[]}`}, ErrParse},
		{"persistence", &fakeStore{appendErr: appendErr}, &fakeProvider{body: cloudsBody}, appendErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.store, tc.provider)
			_, err := svc.Refresh(context.Background())
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Refresh() error = %v, want %v", err, tc.wantErr)
			}
			if len(tc.store.records) != 0 {
				t.Errorf("store records = %d, want 0", len(tc.store.records))
			}
		})
	}
}

func TestDateOf(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	in := time.Date(2024, 11, 15, 1, 0, 0, 0, seoul)
	got := DateOf(in)
	want := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf(%v) = %v, want %v", in, got, want)
	}
	if _, err := ParseDate("2024-13-01"); err == nil {
		t.Error("ParseDate() expected error for month 13")
	}
}
