// Package session drives the live game loop: it discovers the next show,
// holds the broadcast socket open, and turns inbound show events into
// predictions and game-record mutations.
//
// The session is a state machine: Idle -> Discovering -> Connected ->
// InGame -> Ended, looping back to Discovering on any terminal or error
// transition. A single goroutine advances it; the blocking socket receive
// is the only long-lived call, so prediction for question N always
// completes (or fails fatally) before question N+1 is read.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quizoracle/quizoracle/internal/games"
	"github.com/quizoracle/quizoracle/internal/logger"
	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/predict"
	"github.com/quizoracle/quizoracle/internal/showapi"
	"github.com/quizoracle/quizoracle/internal/solver"
)

// State identifies the session's position in its lifecycle.
type State int

const (
	// StateIdle is the initial state before discovery starts.
	StateIdle State = iota
	// StateDiscovering polls the show directory for a live socket URL.
	StateDiscovering
	// StateConnected has the socket open but no active game yet.
	StateConnected
	// StateInGame is processing question and summary events.
	StateInGame
	// StateEnded means the broadcast closed cleanly.
	StateEnded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateConnected:
		return "connected"
	case StateInGame:
		return "in-game"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Conn is the subset of the websocket connection the session reads from.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	Close() error
}

// Dialer opens the broadcast socket. Injected so tests can supply scripted
// connections.
type Dialer func(ctx context.Context, socketURL string, header http.Header) (Conn, error)

// GorillaDialer dials with the default gorilla/websocket dialer.
func GorillaDialer(ctx context.Context, socketURL string, header http.Header) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Notifier pushes live predictions and outcomes to an external channel.
type Notifier interface {
	SendPrediction(q *models.Question) error
	SendOutcome(q *models.Question, right bool) error
}

// Config holds the session's tunables.
type Config struct {
	ReconnectBackoff time.Duration
	DiscoveryBackoff time.Duration
	MessagesLog      string
	OpenBrowser      bool
	SearchBaseURL    string
}

// maxDialFailures is how many consecutive failed dials count as a hard
// socket close with no recovery path, returning the session to discovery.
const maxDialFailures = 5

// Session is one live game session. Only one is active at a time; all of
// its mutable state lives here rather than in package globals.
type Session struct {
	shows    *showapi.Client
	engine   *predict.Engine
	store    *games.Store
	notifier Notifier
	dial     Dialer
	cfg      Config

	state       State
	currentGame string
	ended       bool
}

// New creates a Session. notifier may be nil to disable notifications.
func New(shows *showapi.Client, engine *predict.Engine, store *games.Store, notifier Notifier, dial Dialer, cfg Config) *Session {
	if dial == nil {
		dial = GorillaDialer
	}
	return &Session{
		shows:    shows,
		engine:   engine,
		store:    store,
		notifier: notifier,
		dial:     dial,
		cfg:      cfg,
		state:    StateIdle,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(state State) {
	if s.state != state {
		logger.Debug("session state: %s -> %s", s.state, state)
		s.state = state
	}
}

// Run drives the session until the context is cancelled or a fatal error
// occurs. Transient socket faults reconnect; rate limiting and data
// consistency failures propagate.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setState(StateDiscovering)

		show, err := s.shows.FetchShow(ctx)
		if err != nil {
			logger.Warn("failed to reach show directory: %v", err)
			if err := sleepCtx(ctx, s.cfg.DiscoveryBackoff); err != nil {
				return err
			}
			continue
		}

		if !show.Live() {
			s.waitForNextShow(ctx, show)
			continue
		}

		logger.Info("connecting to show socket: %s", show.SocketURL)
		if err := s.playBroadcast(ctx, show.SocketURL); err != nil {
			return err
		}
	}
}

// waitForNextShow sleeps until the announced next-show time, or for the
// fixed discovery backoff when none is known.
func (s *Session) waitForNextShow(ctx context.Context, show *showapi.Show) {
	if show.NextShowTime != nil {
		until := time.Until(*show.NextShowTime)
		if until > 0 {
			logger.Info("no live show; next show at %s (prize %s), sleeping %v",
				show.NextShowTime.Format(time.RFC1123), show.NextShowPrize, until.Round(time.Second))
			_ = sleepCtx(ctx, until)
			return
		}
		logger.Info("show should have started; retrying shortly")
	} else {
		logger.Info("no live show and no schedule; retrying shortly")
	}
	_ = sleepCtx(ctx, s.cfg.DiscoveryBackoff)
}

// playBroadcast holds one broadcast's socket open, reconnecting on the same
// URL for the life of the show. A clean broadcastEnded returns nil so the
// caller loops back to discovery.
func (s *Session) playBroadcast(ctx context.Context, socketURL string) error {
	s.ended = false
	s.currentGame = ""
	dialFailures := 0

	for !s.ended {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.dial(ctx, socketURL, s.shows.Headers())
		if err != nil {
			dialFailures++
			if dialFailures >= maxDialFailures {
				logger.Warn("socket unreachable after %d attempts, returning to discovery", dialFailures)
				return nil
			}
			logger.Warn("socket dial failed: %v, reconnecting", err)
			if err := sleepCtx(ctx, s.cfg.ReconnectBackoff); err != nil {
				return err
			}
			continue
		}
		dialFailures = 0
		s.setState(StateConnected)
		logger.Info("CONNECTION SUCCESSFUL")

		err = s.readLoop(ctx, conn)
		_ = conn.Close()
		if err != nil {
			if isFatal(err) {
				return err
			}
			logger.Warn("CONNECTION LOST: %v, reconnecting", err)
			if err := sleepCtx(ctx, s.cfg.ReconnectBackoff); err != nil {
				return err
			}
		}
	}

	s.setState(StateEnded)
	logger.Info("BROADCAST ENDED")
	return nil
}

func (s *Session) readLoop(ctx context.Context, conn Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if s.ended {
				return nil
			}
			return fmt.Errorf("socket read: %w", err)
		}
		if err := s.HandleMessage(ctx, payload); err != nil {
			return err
		}
		if s.ended {
			return nil
		}
	}
}

// isFatal reports whether the error must stop the session instead of
// triggering a reconnect. Rate limiting means every further query would be
// blocked; a missing recorded question means the record can no longer be
// trusted.
func isFatal(err error) bool {
	return errors.Is(err, solver.ErrRateLimited) || errors.Is(err, games.ErrQuestionNotFound)
}

// openBrowser opens the first search query in a browser tab, best effort.
// Live games only; replays never trigger side effects.
func (s *Session) openBrowser(questionText string) {
	if !s.cfg.OpenBrowser {
		return
	}
	target := s.cfg.SearchBaseURL + url.QueryEscape(questionText)
	if err := exec.Command("xdg-open", target).Start(); err != nil {
		logger.Debug("failed to open browser: %v", err)
	}
}

// appendDiagnostic appends one raw line to the append-only message log.
func (s *Session) appendDiagnostic(line string) {
	if s.cfg.MessagesLog == "" {
		return
	}
	file, err := os.OpenFile(s.cfg.MessagesLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Debug("failed to open message log: %v", err)
		return
	}
	defer func() { _ = file.Close() }()
	if _, err := fmt.Fprintln(file, line); err != nil {
		logger.Debug("failed to append message log: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
