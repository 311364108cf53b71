package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/cache"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/observability"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/records"
)

// Mode selects what one ingestion run does.
type Mode string

const (
	// ModeFetch calls the provider, updates the cache and appends a row.
	ModeFetch Mode = "fetch"
	// ModeReadback loads the latest stored row into the cache without any network call.
	ModeReadback Mode = "readback"
)

// ParseMode accepts "fetch" or "readback" (case-insensitive). Empty means fetch.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFetch:
		return ModeFetch, nil
	case ModeReadback:
		return ModeReadback, nil
	default:
		return "", errors.Errorf("unknown ingest mode %q (want %q or %q)", s, ModeFetch, ModeReadback)
	}
}

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeSkipped         Outcome = "skipped_overlap"
	OutcomeFetchError      Outcome = "fetch_error"
	OutcomeDecodeError     Outcome = "decode_error"
	OutcomeNoObservation   Outcome = "no_observation"
	OutcomeStoreWriteError Outcome = "store_write_error"
	OutcomeStoreReadError  Outcome = "store_read_error"
	OutcomeStoreEmpty      Outcome = "store_empty"
)

// Fetcher retrieves the current snapshot from the weather provider.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (models.Snapshot, error)
}

// Store is the persistence the task needs.
type Store interface {
	InsertObservation(ctx context.Context, rec models.ObservationRecord) (int64, error)
	LatestObservation(ctx context.Context) (*models.StoredObservation, error)
}

// Task is the scheduled ingestion routine. Runs never overlap: a run started
// while another is in flight is skipped.
type Task struct {
	mode    Mode
	slot    *cache.Slot
	store   Store
	fetcher Fetcher
	timeout time.Duration
	logger  *zap.Logger

	running sync.Mutex
	run     func(ctx context.Context, log *zap.Logger) Outcome
}

// Options configures a Task. Fetcher is required only in ModeFetch.
type Options struct {
	Mode    Mode
	Slot    *cache.Slot
	Store   Store
	Fetcher Fetcher
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTask validates opts and binds the run strategy for the mode.
func NewTask(opts Options) (*Task, error) {
	if opts.Slot == nil {
		return nil, errors.New("ingest: cache slot is required")
	}
	if opts.Store == nil {
		return nil, errors.New("ingest: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	t := &Task{
		mode:    opts.Mode,
		slot:    opts.Slot,
		store:   opts.Store,
		fetcher: opts.Fetcher,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}

	switch opts.Mode {
	case ModeFetch:
		if opts.Fetcher == nil {
			return nil, errors.New("ingest: fetch mode needs a provider")
		}
		t.run = t.fetchAndSave
	case ModeReadback:
		t.run = t.readBack
	default:
		return nil, errors.Errorf("ingest: unsupported mode %q", opts.Mode)
	}
	return t, nil
}

// Mode reports the strategy the task was built with.
func (t *Task) Mode() Mode {
	return t.mode
}

// Run performs one ingestion pass. Every failure is logged and ends the run;
// nothing is retried and nothing propagates to the caller.
func (t *Task) Run(ctx context.Context) Outcome {
	log := t.logger.With(zap.String("run_id", uuid.NewString()), zap.String("mode", string(t.mode)))

	if !t.running.TryLock() {
		log.Warn("previous ingestion run still in flight; skipping")
		observability.IngestRunsTotal.WithLabelValues(string(t.mode), string(OutcomeSkipped)).Inc()
		return OutcomeSkipped
	}
	defer t.running.Unlock()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome := t.run(ctx, log)
	elapsed := time.Since(start)

	observability.IngestRunDuration.WithLabelValues(string(t.mode)).Observe(elapsed.Seconds())
	observability.IngestRunsTotal.WithLabelValues(string(t.mode), string(outcome)).Inc()
	log.Debug("ingestion run finished", zap.String("outcome", string(outcome)), zap.Duration("elapsed", elapsed))
	return outcome
}

func (t *Task) fetchAndSave(ctx context.Context, log *zap.Logger) Outcome {
	log.Info("fetching weather observations")

	raw, err := t.fetcher.FetchSnapshot(ctx)
	if err != nil {
		log.Error("fetch weather observations failed", zap.Error(err))
		return OutcomeFetchError
	}

	observations, err := records.Decode(raw)
	if err != nil {
		log.Error("decode weather observations failed", zap.Error(err))
		return OutcomeDecodeError
	}

	// The cache reflects the provider even when persistence below fails.
	t.slot.Set(raw)

	obs, err := records.First(observations)
	if err != nil {
		log.Error("no observation to persist", zap.Error(err))
		return OutcomeNoObservation
	}

	rec := records.Build(obs, raw)
	id, err := t.store.InsertObservation(ctx, rec)
	if err != nil {
		log.Error("write observation to store failed", zap.Error(err))
		return OutcomeStoreWriteError
	}

	fields := []zap.Field{zap.Int64("row_id", id)}
	if rec.StationID != nil {
		fields = append(fields, zap.String("station_id", *rec.StationID))
	}
	log.Info("stored latest observation", fields...)
	return OutcomeOK
}

func (t *Task) readBack(ctx context.Context, log *zap.Logger) Outcome {
	latest, err := t.store.LatestObservation(ctx)
	if err != nil {
		log.Error("read latest observation from store failed", zap.Error(err))
		return OutcomeStoreReadError
	}
	if latest == nil {
		log.Info("store is empty; cache left unchanged")
		return OutcomeStoreEmpty
	}

	t.slot.Set(latest.RawData)
	log.Info("loaded latest observation from store",
		zap.Int64("row_id", latest.ID),
		zap.Time("created_at", latest.CreatedAt),
	)
	return OutcomeOK
}
