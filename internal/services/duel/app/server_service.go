package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	"github.com/louisbranch/wordduel/internal/platform/id"
	"github.com/louisbranch/wordduel/internal/platform/timeouts"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
	"github.com/louisbranch/wordduel/internal/services/duel/reconnect"
	"github.com/louisbranch/wordduel/internal/services/duel/registry"
	"github.com/louisbranch/wordduel/internal/services/duel/words"
)

type serviceConfig struct {
	Supplier          words.Supplier
	Rules             room.Rules
	WordTimeout       time.Duration
	ReconnectGrace    time.Duration
	FinishedRetention time.Duration
	Signer            *reconnect.Signer
	TracerProvider    trace.TracerProvider
	MeterProvider     metric.MeterProvider
	NewID             func() (string, error)
}

// duelService connects websocket sessions to the registry and the running
// rooms.
type duelService struct {
	ctx       context.Context
	cancel    context.CancelFunc
	registry  *registry.Registry
	hub       *roomHub
	signer    *reconnect.Signer
	tracer    trace.Tracer
	metrics   *duelMetrics
	grace     time.Duration
	retention time.Duration
	newID     func() (string, error)
}

func newDuelService(ctx context.Context, cfg serviceConfig) (*duelService, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("reconnect signer is required")
	}
	if cfg.ReconnectGrace <= 0 {
		cfg.ReconnectGrace = timeouts.ReconnectGrace
	}
	if cfg.FinishedRetention <= 0 {
		cfg.FinishedRetention = timeouts.FinishedRetention
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	metrics, err := newDuelMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(ctx)
	svc := &duelService{
		ctx:       serviceCtx,
		cancel:    cancel,
		hub:       newRoomHub(),
		signer:    cfg.Signer,
		tracer:    newTracer(cfg.TracerProvider),
		metrics:   metrics,
		grace:     cfg.ReconnectGrace,
		retention: cfg.FinishedRetention,
		newID:     cfg.NewID,
	}
	reg, err := registry.New(registry.Config{
		Supplier:    cfg.Supplier,
		Rules:       cfg.Rules,
		WordTimeout: cfg.WordTimeout,
		NewID:       cfg.NewID,
		OnActivate:  svc.activate,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init registry: %w", err)
	}
	svc.registry = reg
	return svc, nil
}

// close stops every room actor.
func (s *duelService) close() {
	s.cancel()
}

// activate runs under the registry lock when a room gets its second player.
func (s *duelService) activate(r *room.Room) {
	sessions := make(map[string]*wsSession, 2)
	for _, playerID := range r.PlayerIDs() {
		if session := s.hub.session(playerID); session != nil {
			sessions[playerID] = session
		}
	}
	actor := newRoomActor(r, s, sessions)
	for _, session := range sessions {
		session.setRoom(actor)
	}
	s.hub.register(actor)
	s.metrics.roomStarted(s.ctx)
}

func (s *duelService) handleJoin(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload joinRoomPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, joinAck{
			Error: &wsError{Code: "INVALID_ARGUMENT", Message: "invalid join payload"},
		}))
		return
	}

	ctx, span := s.tracer.Start(ctx, "duel.join")
	defer span.End()

	identity := session.identity()
	if _, inRoom := s.registry.RoomOf(identity); !inRoom {
		session.setRoom(nil)
	}
	s.hub.attach(identity, session)
	assignment, err := s.registry.Join(ctx, identity, payload.Username)
	if err != nil {
		if _, inRoom := s.registry.RoomOf(identity); !inRoom {
			s.hub.detach(identity, session)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "join rejected")
		log.Printf("duel: join rejected player=%q err=%v", identity, err)
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, joinAck{Error: errorFromApp(err)}))
		return
	}
	span.SetAttributes(
		attribute.String("room.id", assignment.RoomID),
		attribute.Bool("room.waiting", assignment.Waiting),
	)

	token, err := s.signer.Issue(assignment.RoomID, identity)
	if err != nil {
		log.Printf("duel: reconnect token not issued room=%q player=%q err=%v", assignment.RoomID, identity, err)
	}
	session.peer.enqueue(newFrame(frameAck, frame.RequestID, joinAck{
		Success:                true,
		WaitingForSecondPlayer: assignment.Waiting,
		Room:                   assignment.RoomID,
		PlayerID:               identity,
		ReconnectToken:         token,
	}))
	if assignment.Room == nil {
		log.Printf("duel: player waiting room=%q player=%q", assignment.RoomID, identity)
		return
	}
	if actor := s.hub.room(assignment.RoomID); actor != nil {
		actor.start(s.ctx)
	}
}

func (s *duelService) handleRejoin(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload rejoinRoomPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, joinAck{
			Error: &wsError{Code: "INVALID_ARGUMENT", Message: "invalid rejoin payload"},
		}))
		return
	}

	ctx, span := s.tracer.Start(ctx, "duel.rejoin")
	defer span.End()

	if err := s.rejoin(ctx, session, frame.RequestID, strings.TrimSpace(payload.Token)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejoin rejected")
		log.Printf("duel: rejoin rejected conn=%q err=%v", session.connID, err)
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, joinAck{Error: errorFromApp(err)}))
	}
}

func (s *duelService) rejoin(ctx context.Context, session *wsSession, requestID, token string) error {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("room.id", claims.RoomID),
		attribute.String("player.id", claims.PlayerID),
	)
	if roomID, inRoom := s.registry.RoomOf(session.identity()); inRoom && roomID != claims.RoomID {
		return apperrors.New(apperrors.CodeSessionAlreadyBound, "connection already belongs to another room")
	}

	actor := s.hub.room(claims.RoomID)
	if actor == nil {
		return apperrors.New(apperrors.CodeRoomNotFound, "room is no longer available")
	}
	reply := make(chan error, 1)
	if !actor.post(actorMsg{
		kind:      msgRejoin,
		playerID:  claims.PlayerID,
		session:   session,
		requestID: requestID,
		reply:     reply,
	}) {
		return apperrors.New(apperrors.CodeRoomNotFound, "room is no longer available")
	}

	select {
	case err := <-reply:
		return err
	case <-actor.done:
		select {
		case err := <-reply:
			return err
		default:
			return apperrors.New(apperrors.CodeRoomNotFound, "room is no longer available")
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *duelService) handleGuess(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload guessMadePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		s.discardGuess(ctx, session, err)
		return
	}
	if _, err := room.ParseLetter(payload.Letter); err != nil {
		s.discardGuess(ctx, session, err)
		return
	}

	actor := session.currentRoom()
	if actor == nil {
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, guessAck{
			Error: errorFromApp(apperrors.New(apperrors.CodeRoomNotActive, "no active room for this connection")),
		}))
		return
	}
	if !actor.post(actorMsg{
		kind:      msgGuess,
		playerID:  session.identity(),
		session:   session,
		requestID: frame.RequestID,
		letter:    payload.Letter,
		scoreHint: payload.Score,
	}) {
		session.peer.enqueue(newFrame(frameAck, frame.RequestID, guessAck{
			Error: errorFromApp(apperrors.New(apperrors.CodeRoomNotFound, "room is no longer available")),
		}))
	}
}

// discardGuess drops a malformed guess without answering the client.
func (s *duelService) discardGuess(ctx context.Context, session *wsSession, err error) {
	s.metrics.guessDiscarded(ctx)
	log.Printf("duel: malformed guess discarded player=%q err=%v", session.identity(), err)
}

// handleDisconnect runs once when a connection's read loop ends.
func (s *duelService) handleDisconnect(session *wsSession) {
	identity := session.identity()
	if departure, ok := s.registry.Leave(identity); ok && departure.Abandoned {
		log.Printf("duel: waiting room abandoned room=%q player=%q", departure.RoomID, identity)
	}
	if actor := session.currentRoom(); actor != nil {
		actor.post(actorMsg{kind: msgDisconnect, playerID: identity, session: session})
	}
	s.hub.detach(identity, session)
}
