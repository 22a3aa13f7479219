// Package pipeline runs one fetch -> transform -> publish cycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// Fetcher returns the most recent sensor reading.
type Fetcher interface {
	FetchLatest(ctx context.Context) (forecast.SensorReading, error)
}

// Forecaster is the transform as seen by a run: in-process or over HTTP.
type Forecaster interface {
	Forecast(ctx context.Context, reading forecast.SensorReading) (forecast.Value, error)
}

// Publisher writes a forecast to a destination.
type Publisher interface {
	Publish(ctx context.Context, v forecast.Value) error
}

// Recorder receives the outcome of every run.
type Recorder interface {
	Record(Outcome)
}

// Outcome summarizes a single run.
type Outcome struct {
	RunID    string                  `json:"runId"`
	Started  time.Time               `json:"started"`
	Finished time.Time               `json:"finished"`
	Reading  *forecast.SensorReading `json:"reading,omitempty"`
	Value    *forecast.Value         `json:"predictedCaci1hr,omitempty"`
	Stage    Stage                   `json:"failedStage,omitempty"`
	Error    string                  `json:"error,omitempty"`

	Err error `json:"-"`
}

// OK reports whether every stage succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Runner executes pipeline runs. It holds no per-run state, so
// overlapping runs are safe.
type Runner struct {
	fetcher    Fetcher
	forecaster Forecaster
	publisher  Publisher
	mirrors    []Publisher
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithMirrors adds destinations that receive each successfully published forecast.
func WithMirrors(m ...Publisher) Option {
	return func(r *Runner) { r.mirrors = append(r.mirrors, m...) }
}

// WithRecorder sets where run outcomes are recorded.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func NewRunner(f Fetcher, fc Forecaster, p Publisher, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		fetcher:    f,
		forecaster: fc,
		publisher:  p,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunOnce performs one run. Failures are logged with their stage and
// returned in the Outcome; nothing escapes, including panics.
func (r *Runner) RunOnce(ctx context.Context) (out Outcome) {
	out = Outcome{RunID: uuid.NewString(), Started: r.now()}
	log := r.logger.With().Str("run_id", out.RunID).Logger()

	defer func() {
		if p := recover(); p != nil {
			stage := out.Stage
			if stage == "" {
				stage = StageTransform
			}
			out.fail(stage, fmt.Errorf("panic: %v", p))
			log.Error().Str("stage", string(stage)).Interface("panic", p).Msg("run panicked")
		}
		out.Finished = r.now()
		if r.recorder != nil {
			r.recorder.Record(out)
		}
	}()

	log.Debug().Msg("run started")

	out.Stage = StageFetch
	reading, err := r.fetcher.FetchLatest(ctx)
	if err != nil {
		out.fail(StageFetch, err)
		log.Error().Str("stage", string(StageFetch)).Err(err).Msg("failed to fetch latest reading; run aborted")
		return out
	}
	out.Reading = &reading

	out.Stage = StageTransform
	value, err := r.forecaster.Forecast(ctx, reading)
	if err != nil {
		out.fail(StageTransform, err)
		ev := log.Error().Str("stage", string(StageTransform)).Err(err)
		if kind := forecast.KindOf(err); kind != "" {
			ev = ev.Str("kind", string(kind))
		}
		ev.Msg("transform failed; run aborted")
		return out
	}
	out.Value = &value

	out.Stage = StagePublish
	if err := r.publisher.Publish(ctx, value); err != nil {
		out.fail(StagePublish, err)
		log.Error().Str("stage", string(StagePublish)).Err(err).Float64("predicted_caci_1hr", float64(value)).
			Msg("failed to publish forecast")
		return out
	}

	for _, m := range r.mirrors {
		if err := m.Publish(ctx, value); err != nil {
			log.Warn().Str("stage", string(StagePublish)).Err(err).Msg("mirror publish failed")
		}
	}

	out.Stage = ""
	log.Info().Float64("predicted_caci_1hr", float64(value)).Msg("CACI forecasted and published")
	return out
}

func (o *Outcome) fail(stage Stage, err error) {
	o.Stage = stage
	o.Err = &StageError{Stage: stage, Err: err}
	o.Error = err.Error()
}
