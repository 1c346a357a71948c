package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/archive"
	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

func TestServe_StopsOnCancel(t *testing.T) {
	srv, _ := fakeOpenAQ(t, map[string]string{"/locations": noLocations})
	cfg := testConfig(t, srv.URL)
	cfg.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, quietLogger()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_RequiresAPIKey(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	cfg.APIKey = ""
	cfg.HTTPAddr = "127.0.0.1:0"

	if err := Serve(context.Background(), cfg, quietLogger()); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("Serve error = %v, want ErrMissingAPIKey", err)
	}
}

type savingRepo struct {
	archive.Repository
	saved []archive.Run
	err   error
}

func (r *savingRepo) SaveRun(ctx context.Context, run archive.Run, records []pollution.Record) error {
	r.saved = append(r.saved, run)
	return r.err
}

func TestAfterCollect(t *testing.T) {
	repo := &savingRepo{}
	sink := &recordingSink{}
	hook := afterCollect(repo, []Sink{sink}, quietLogger())

	records := []pollution.Record{{ID: 1, Pollutant: "PM2.5", Value: 3}}
	hook(context.Background(), records, pollution.Stats{Locations: 1, Records: 1})

	if len(repo.saved) != 1 || repo.saved[0].Records != 1 || repo.saved[0].ID == "" {
		t.Errorf("saved runs = %+v", repo.saved)
	}
	if len(sink.published) != 1 {
		t.Errorf("published batches = %d, want 1", len(sink.published))
	}

	t.Run("archive failure still publishes", func(t *testing.T) {
		repo := &savingRepo{err: errors.New("disk full")}
		sink := &recordingSink{}
		afterCollect(repo, []Sink{sink}, quietLogger())(context.Background(), records, pollution.Stats{})
		if len(sink.published) != 1 {
			t.Errorf("published batches = %d, want 1", len(sink.published))
		}
	})

	t.Run("no archive", func(t *testing.T) {
		sink := &recordingSink{}
		afterCollect(nil, []Sink{sink}, quietLogger())(context.Background(), records, pollution.Stats{})
		if len(sink.published) != 1 {
			t.Errorf("published batches = %d, want 1", len(sink.published))
		}
	})
}
