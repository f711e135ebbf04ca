package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPollInterval = 50 * time.Millisecond

// Feed is the consumer side of a Stream.
type Feed interface {
	IsConnected() bool
	Data() ([]domain.Record, bool)
	Done() <-chan struct{}
	Err() error
}

var _ Feed = (*Stream)(nil)

type RecordOptions struct {
	// User names the profile on first use. When it differs from the stored
	// profile a fresh profile replaces it.
	User     string
	Labels   []string
	Rounds   int
	Interval time.Duration
	// PollInterval is how often the feed is drained. Defaults to 50ms.
	PollInterval time.Duration
	// OnConnected is called once the headset produces real data.
	OnConnected func()
	// OnLabel is called whenever a new label starts its interval.
	OnLabel func(label string, index, total int)
	Shuffle func(labels []string)
}

type RecordResult struct {
	Session  domain.Session
	Location string
}

type Recorder struct {
	profiles ports.ProfileRepository
	sessions ports.SessionRepository
	clock    ports.Clock
	logger   *zap.Logger
}

func NewRecorder(profiles ports.ProfileRepository, sessions ports.SessionRepository, clock ports.Clock, logger *zap.Logger) *Recorder {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recorder{profiles: profiles, sessions: sessions, clock: clock, logger: logger}
}

// Record waits for the feed to connect, cycles through the labels in
// shuffled rounds while collecting tagged records, then saves the session
// and bumps the profile's session count.
func (r *Recorder) Record(ctx context.Context, feed Feed, opts RecordOptions) (RecordResult, error) {
	if len(opts.Labels) == 0 {
		return RecordResult{}, domain.ErrNoLabels
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(labels []string) {
			rand.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })
		}
	}

	profile, err := r.ResolveProfile(ctx, opts.User)
	if err != nil {
		return RecordResult{}, err
	}

	if err := WaitConnected(ctx, feed, opts.PollInterval); err != nil {
		return RecordResult{}, err
	}
	if opts.OnConnected != nil {
		opts.OnConnected()
	}

	start := r.clock.Now()
	total := opts.Rounds * len(opts.Labels)
	var bag []string
	var data []domain.TaggedRecord

	for i := 0; i < total; i++ {
		if len(bag) == 0 {
			bag = append(bag, opts.Labels...)
			opts.Shuffle(bag)
		}
		label := bag[len(bag)-1]
		bag = bag[:len(bag)-1]

		if opts.OnLabel != nil {
			opts.OnLabel(label, i, total)
		}

		collected, err := r.collect(ctx, feed, label, start, opts)
		if err != nil {
			return RecordResult{}, err
		}
		data = append(data, collected...)
	}

	session := domain.Session{
		ID:            uuid.NewString(),
		StartTime:     start,
		User:          profile.Name,
		SessionNumber: profile.NextSessionNumber(),
		Data:          data,
	}

	location, err := r.sessions.Save(ctx, session)
	if err != nil {
		return RecordResult{}, fmt.Errorf("save session: %w", err)
	}

	profile.SessionCount = session.SessionNumber
	if err := r.profiles.Save(ctx, profile); err != nil {
		return RecordResult{}, fmt.Errorf("save profile: %w", err)
	}

	r.logger.Info("session saved",
		zap.String("user", session.User),
		zap.Int("session", session.SessionNumber),
		zap.Int("records", len(session.Data)),
		zap.String("location", location),
	)

	return RecordResult{Session: session, Location: location}, nil
}

// WithLogger returns a copy of the recorder that logs to logger.
func (r *Recorder) WithLogger(logger *zap.Logger) *Recorder {
	clone := *r
	clone.logger = logger
	return &clone
}

// ResolveProfile returns the profile a session for user would be recorded
// under without saving anything.
func (r *Recorder) ResolveProfile(ctx context.Context, user string) (domain.Profile, error) {
	profile, err := r.profiles.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return domain.Profile{}, fmt.Errorf("load profile: %w", err)
		}
		if user == "" {
			return domain.Profile{}, domain.ErrEmptyUser
		}
		return domain.Profile{Name: user}, nil
	}

	if user != "" && user != profile.Name {
		return domain.Profile{Name: user}, nil
	}
	return profile, nil
}

// WaitConnected polls feed until it reports a connection, ctx ends or the
// feed stops without ever connecting.
func WaitConnected(ctx context.Context, feed Feed, poll time.Duration) error {
	if poll <= 0 {
		poll = defaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for !feed.IsConnected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-feed.Done():
			if feed.IsConnected() {
				return nil
			}
			return StreamEnded(feed.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Recorder) collect(ctx context.Context, feed Feed, label string, start time.Time, opts RecordOptions) ([]domain.TaggedRecord, error) {
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var tagged []domain.TaggedRecord
	intervalStart := r.clock.Now()
	for {
		if records, ok := feed.Data(); ok {
			tagged = append(tagged, domain.Tag(records, label, r.clock.Now().Sub(start))...)
		}
		if r.clock.Now().Sub(intervalStart) > opts.Interval {
			return tagged, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StreamEnded explains a feed that stopped before the headset connected.
func StreamEnded(err error) error {
	if err == nil {
		return errors.New("stream stopped before the headset connected")
	}
	return fmt.Errorf("stream stopped before the headset connected: %w", err)
}
