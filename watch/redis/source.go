package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/jonwraymond/agenthealth/observe"
	"github.com/jonwraymond/agenthealth/resilience"
	"github.com/jonwraymond/agenthealth/watch"
)

// ErrWatchFailed wraps every error that prevents a watch from starting.
var ErrWatchFailed = errors.New("redis: watch failed")

const scanBatch = 100

// Config configures a Source.
type Config struct {
	// Addr is the Redis address. Default: "localhost:6379"
	Addr string

	Password string
	DB       int

	// PingInterval is how often the connection is probed. Default: 5 seconds
	PingInterval time.Duration

	// LostAfter is the number of consecutive failed pings after which the
	// connection is reported lost. Default: 3
	LostAfter int

	// ConfigureNotifications enables keyspace notifications on the server
	// with CONFIG SET before subscribing.
	ConfigureNotifications bool

	// Connect controls retries of the initial connection. Authentication
	// failures are not retried.
	// Default: 5 attempts, exponential backoff from 200ms with jitter
	Connect resilience.RetryConfig

	// Logger receives connection state changes. Default: no-op
	Logger observe.Logger
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.LostAfter <= 0 {
		c.LostAfter = 3
	}
	if c.Connect.MaxAttempts == 0 {
		c.Connect.MaxAttempts = 5
		c.Connect.Backoff = resilience.Backoff{Initial: 200 * time.Millisecond, Jitter: true}
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
}

// Source watches the children of a path stored as Redis keys.
type Source struct {
	client *goredis.Client
	config Config
	retry  *resilience.Retry
}

// New creates a Source with its own client.
func New(config Config) *Source {
	config.applyDefaults()
	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return newSource(client, config)
}

// NewWithClient creates a Source on an existing client. The client's DB must
// match config.DB.
func NewWithClient(client *goredis.Client, config Config) *Source {
	config.applyDefaults()
	return newSource(client, config)
}

func newSource(client *goredis.Client, config Config) *Source {
	retryConfig := config.Connect
	logger := config.Logger
	retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn(context.Background(), "redis connect failed, retrying",
			observe.F("addr", config.Addr),
			observe.F("attempt", attempt),
			observe.F("delay", delay.String()),
			observe.F("error", err),
		)
	}
	return &Source{
		client: client,
		config: config,
		retry:  resilience.NewRetry(retryConfig),
	}
}

// Close closes the underlying client.
func (s *Source) Close() error {
	return s.client.Close()
}

// Watch connects, subscribes to keyspace notifications for the children of
// path and seeds the known children. The first event delivered is
// INITIALIZED. The channel closes after ctx is cancelled.
func (s *Source) Watch(ctx context.Context, path string) (<-chan watch.Event, error) {
	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		err := s.client.Ping(ctx).Err()
		if isAuthError(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrWatchFailed, s.config.Addr, err)
	}

	if s.config.ConfigureNotifications {
		if err := s.client.ConfigSet(ctx, "notify-keyspace-events", "KA").Err(); err != nil {
			return nil, fmt.Errorf("%w: enable keyspace notifications: %w", ErrWatchFailed, err)
		}
	}

	prefix := keyspacePrefix(s.config.DB)
	pubsub := s.client.PSubscribe(ctx, prefix+childPattern(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrWatchFailed, path, err)
	}

	keys, err := s.scan(ctx, path)
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: seed %s: %w", ErrWatchFailed, path, err)
	}
	known := make(children, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}
	}

	s.config.Logger.Info(ctx, "watching redis keyspace",
		observe.F("addr", s.config.Addr),
		observe.F("path", path),
		observe.F("children", len(known)),
	)

	out := make(chan watch.Event, 16)
	go s.run(ctx, pubsub, path, prefix, known, out)
	return out, nil
}

func (s *Source) scan(ctx context.Context, path string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, childPattern(path), scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *Source) run(ctx context.Context, pubsub *goredis.PubSub, path, prefix string, known children, out chan<- watch.Event) {
	defer close(out)
	defer func() { _ = pubsub.Close() }()

	send := func(ev watch.Event) bool {
		ev.Time = time.Now()
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(watch.Event{Type: watch.EventInitialized}) {
		return
	}

	messages := pubsub.Channel()
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	state := link{lostAfter: s.config.LostAfter}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-messages:
			if !ok {
				return
			}
			ev, changed := known.translate(prefix, msg.Channel, msg.Payload)
			if changed && !send(ev) {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.config.PingInterval)
			err := s.client.Ping(pingCtx).Err()
			cancel()
			if ctx.Err() != nil {
				return
			}

			t, changed := state.observe(err)
			if !changed {
				continue
			}
			s.config.Logger.Warn(ctx, "redis connection state changed",
				observe.F("addr", s.config.Addr),
				observe.F("event", t.String()),
				observe.F("error", err),
			)

			if !send(watch.Event{Type: t}) {
				return
			}
			if t != watch.EventReconnected {
				continue
			}

			// Notifications published while disconnected were dropped.
			keys, err := s.scan(ctx, path)
			if err != nil {
				s.config.Logger.Warn(ctx, "redis resync failed", observe.F("error", err))
				continue
			}
			for _, ev := range known.resync(keys) {
				if !send(ev) {
					return
				}
			}
		}
	}
}

// isAuthError reports whether err is a server reply rejecting credentials.
func isAuthError(err error) bool {
	var reply goredis.Error
	if !errors.As(err, &reply) {
		return false
	}
	msg := reply.Error()
	return strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS")
}

var _ watch.Source = (*Source)(nil)
