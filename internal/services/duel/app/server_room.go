package server

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
)

const roomMailboxSize = 128

type actorMsgKind int

const (
	msgGuess actorMsgKind = iota
	msgDisconnect
	msgRejoin
	msgGraceExpired
	msgRetire
)

type actorMsg struct {
	kind       actorMsgKind
	playerID   string
	session    *wsSession
	requestID  string
	letter     string
	scoreHint  *int
	generation uint64
	reply      chan error
}

// roomSeat is the actor's view of one player's connection.
type roomSeat struct {
	playerID   string
	session    *wsSession
	connected  bool
	grace      *time.Timer
	generation uint64
}

// roomActor is the single writer of one room. Everything that reads or
// mutates the room runs on the actor goroutine; other goroutines talk to it
// through the mailbox.
type roomActor struct {
	id      string
	room    *room.Room
	svc     *duelService
	seats   map[string]*roomSeat
	order   []string
	mailbox chan actorMsg
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	finished  bool
	retire    *time.Timer
}

// newRoomActor builds the actor for an activated room. sessions maps player
// ids to their live sessions; a missing entry means the player is already
// gone and the reconnection window starts with the room.
func newRoomActor(r *room.Room, svc *duelService, sessions map[string]*wsSession) *roomActor {
	actor := &roomActor{
		id:      r.ID(),
		room:    r,
		svc:     svc,
		seats:   make(map[string]*roomSeat, 2),
		mailbox: make(chan actorMsg, roomMailboxSize),
		done:    make(chan struct{}),
	}
	for _, playerID := range r.PlayerIDs() {
		session := sessions[playerID]
		actor.seats[playerID] = &roomSeat{
			playerID:  playerID,
			session:   session,
			connected: session != nil,
		}
		actor.order = append(actor.order, playerID)
	}
	return actor
}

// start launches the actor goroutine once. The actor announces the game to
// both players before reading its mailbox.
func (a *roomActor) start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.run(ctx)
	})
}

// post delivers msg to the actor. It reports false once the actor stopped.
func (a *roomActor) post(msg actorMsg) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.mailbox <- msg:
		return true
	case <-a.done:
		return false
	}
}

func (a *roomActor) run(ctx context.Context) {
	defer a.stop(ctx)

	a.announce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.mailbox:
			for {
				if msg.kind != msgGuess {
					if a.handle(ctx, msg) {
						return
					}
					break
				}
				batch, next := a.drainGuesses(msg)
				a.applyGuesses(ctx, batch)
				if next == nil {
					break
				}
				msg = *next
			}
		}
	}
}

// drainGuesses collects first plus every guess already queued behind it.
// The first non-guess message ends the batch and is returned for dispatch.
func (a *roomActor) drainGuesses(first actorMsg) ([]actorMsg, *actorMsg) {
	batch := []actorMsg{first}
	for {
		select {
		case msg := <-a.mailbox:
			if msg.kind != msgGuess {
				return batch, &msg
			}
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
}

// handle dispatches one non-guess message. It returns true when the actor
// should exit.
func (a *roomActor) handle(ctx context.Context, msg actorMsg) bool {
	switch msg.kind {
	case msgDisconnect:
		a.disconnect(ctx, msg)
	case msgGraceExpired:
		a.graceExpired(ctx, msg)
	case msgRejoin:
		msg.reply <- a.rejoin(ctx, msg)
	case msgRetire:
		return true
	}
	return false
}

func (a *roomActor) announce(ctx context.Context) {
	word := a.room.Word()
	for _, playerID := range a.order {
		seat := a.seats[playerID]
		opponent, _ := a.room.Opponent(playerID)
		a.sendTo(ctx, seat, newFrame(frameGameStarted, "", gameStartedPayload{
			Room:     a.id,
			Word:     word,
			Opponent: opponent.Username,
		}))
	}
	log.Printf("duel: room started room=%q players=%q", a.id, a.order)
	for _, playerID := range a.order {
		if seat := a.seats[playerID]; !seat.connected {
			a.startGrace(seat)
		}
	}
}

func (a *roomActor) applyGuesses(ctx context.Context, batch []actorMsg) {
	ctx, span := a.svc.tracer.Start(ctx, "duel.guess_step", trace.WithAttributes(
		attribute.String("room.id", a.id),
		attribute.Int("guess.count", len(batch)),
	))
	defer span.End()

	intents := make([]room.GuessIntent, len(batch))
	for i, msg := range batch {
		intents[i] = room.GuessIntent{PlayerID: msg.playerID, Letter: msg.letter}
	}
	result := a.room.ApplyStep(intents)

	for i, outcome := range result.Outcomes {
		msg := batch[i]
		if outcome.Status == room.StatusRejected {
			if apperrors.HasCode(outcome.Err, apperrors.CodeGuessMalformed) {
				a.svc.metrics.guessDiscarded(ctx)
				continue
			}
			msg.session.peer.enqueue(newFrame(frameAck, msg.requestID, guessAck{
				Success: false,
				Error:   errorFromApp(outcome.Err),
			}))
			continue
		}

		a.svc.metrics.guessEvaluated(ctx, string(outcome.Status))
		if outcome.Status == room.StatusApplied && msg.scoreHint != nil && *msg.scoreHint != outcome.Score {
			a.svc.metrics.scoreHintMismatched(ctx)
			log.Printf("duel: client score hint ignored room=%q player=%q hint=%d score=%d",
				a.id, msg.playerID, *msg.scoreHint, outcome.Score)
		}

		a.deliver(ctx, msg.session, msg.playerID, newFrame(frameAck, msg.requestID, guessAck{
			Success:           true,
			Status:            string(outcome.Status),
			Sequence:          outcome.Sequence,
			Score:             outcome.Score,
			RemainingAttempts: outcome.RemainingAttempts,
			Finished:          outcome.Finished,
		}))
		if outcome.Status != room.StatusApplied {
			continue
		}
		if opponent := a.opponentSeat(msg.playerID); opponent != nil {
			a.sendTo(ctx, opponent, newFrame(frameOpponentGuessMade, "", opponentGuessMadePayload{
				OpponentScore:             outcome.Score,
				OpponentRemainingAttempts: outcome.RemainingAttempts,
			}))
		}
	}

	span.SetAttributes(attribute.Int("guess.applied", len(result.Applied())))
	if result.Finished {
		a.finish(ctx)
	}
}

func (a *roomActor) disconnect(ctx context.Context, msg actorMsg) {
	seat := a.seats[msg.playerID]
	if seat == nil || seat.session != msg.session || !seat.connected {
		return
	}
	seat.connected = false
	if a.room.Phase() != room.PhaseActive {
		return
	}
	log.Printf("duel: player disconnected room=%q player=%q", a.id, seat.playerID)
	if opponent := a.opponentSeat(seat.playerID); opponent != nil {
		a.sendTo(ctx, opponent, newFrame(frameOpponentDisconnected, "", opponentDisconnectedPayload{
			GraceSeconds: int(a.svc.grace / time.Second),
		}))
	}
	a.startGrace(seat)
}

func (a *roomActor) startGrace(seat *roomSeat) {
	seat.generation++
	generation := seat.generation
	playerID := seat.playerID
	if seat.grace != nil {
		seat.grace.Stop()
	}
	seat.grace = time.AfterFunc(a.svc.grace, func() {
		a.post(actorMsg{kind: msgGraceExpired, playerID: playerID, generation: generation})
	})
}

func (a *roomActor) stopGrace(seat *roomSeat) {
	seat.generation++
	if seat.grace != nil {
		seat.grace.Stop()
		seat.grace = nil
	}
}

func (a *roomActor) graceExpired(ctx context.Context, msg actorMsg) {
	seat := a.seats[msg.playerID]
	if seat == nil || seat.generation != msg.generation || seat.connected {
		return
	}
	if a.room.Phase() != room.PhaseActive {
		return
	}
	if opponent := a.opponentSeat(seat.playerID); opponent != nil && !opponent.connected {
		a.room.Abandon()
	} else if err := a.room.Forfeit(seat.playerID); err != nil {
		log.Printf("duel: forfeit failed room=%q player=%q err=%v", a.id, seat.playerID, err)
		return
	}
	a.finish(ctx)
}

// rejoin moves a player onto a new connection and replays the room for it.
func (a *roomActor) rejoin(ctx context.Context, msg actorMsg) error {
	seat := a.seats[msg.playerID]
	if seat == nil {
		return apperrors.New(apperrors.CodeUnknownPlayer, "player is not in this room")
	}
	view, err := a.room.View(msg.playerID)
	if err != nil {
		return err
	}
	token, err := a.svc.signer.Issue(a.id, msg.playerID)
	if err != nil {
		return err
	}

	previous := seat.session
	wasConnected := seat.connected
	seat.session = msg.session
	seat.connected = true
	a.stopGrace(seat)
	msg.session.bind(msg.playerID, a)
	if previous != nil && previous != msg.session {
		previous.peer.close()
	}

	opponent := a.opponentSeat(msg.playerID)
	a.deliver(ctx, msg.session, msg.playerID, newFrame(frameAck, msg.requestID, joinAck{
		Success:        true,
		Room:           a.id,
		PlayerID:       msg.playerID,
		ReconnectToken: token,
	}))
	a.deliver(ctx, msg.session, msg.playerID, newFrame(frameStateSync, "", stateSyncPayload{
		View:              view,
		OpponentConnected: opponent != nil && opponent.connected,
	}))
	if a.room.Phase() == room.PhaseFinished {
		a.deliver(ctx, msg.session, msg.playerID, a.gameOverFrame(msg.playerID))
		return nil
	}
	if !wasConnected && opponent != nil {
		a.sendTo(ctx, opponent, newFrame(frameOpponentReconnected, "", struct{}{}))
	}
	log.Printf("duel: player rejoined room=%q player=%q", a.id, msg.playerID)
	return nil
}

// finish announces the outcome, frees both identities for matchmaking and
// keeps the room around for late rejoins until the retention timer fires.
func (a *roomActor) finish(ctx context.Context) {
	if a.finished {
		return
	}
	a.finished = true
	outcome := a.room.Outcome()
	// Identities are free before anyone hears the game is over.
	a.svc.registry.Release(a.id)
	a.svc.metrics.roomFinished(ctx, string(outcome.Reason))
	for _, playerID := range a.order {
		seat := a.seats[playerID]
		a.stopGrace(seat)
		a.sendTo(ctx, seat, a.gameOverFrame(playerID))
	}
	log.Printf("duel: room finished room=%q kind=%q winner=%q reason=%q",
		a.id, outcome.Kind, outcome.WinnerID, outcome.Reason)
	a.retire = time.AfterFunc(a.svc.retention, func() {
		a.post(actorMsg{kind: msgRetire})
	})
}

func (a *roomActor) gameOverFrame(playerID string) wsFrame {
	outcome := a.room.Outcome()
	return newFrame(frameGameOver, "", gameOverPayload{
		Result: string(outcome.ResultFor(playerID)),
		Word:   a.room.Word(),
		Reason: string(outcome.Reason),
	})
}

// stop runs when the actor exits, after retention or on shutdown.
func (a *roomActor) stop(ctx context.Context) {
	a.stopOnce.Do(func() {
		close(a.done)
		for _, seat := range a.seats {
			a.stopGrace(seat)
		}
		if a.retire != nil {
			a.retire.Stop()
		}
		if !a.finished {
			a.svc.registry.Release(a.id)
			a.svc.metrics.roomFinished(context.WithoutCancel(ctx), "shutdown")
		}
		a.svc.hub.remove(a)
		for _, seat := range a.seats {
			if seat.session != nil && seat.session.currentRoom() == a {
				seat.session.setRoom(nil)
			}
		}
	})
}

func (a *roomActor) opponentSeat(playerID string) *roomSeat {
	for id, seat := range a.seats {
		if id != playerID {
			return seat
		}
	}
	return nil
}

func (a *roomActor) sendTo(ctx context.Context, seat *roomSeat, frame wsFrame) {
	if !seat.connected || seat.session == nil {
		a.undelivered(ctx, seat.playerID, frame.Type)
		return
	}
	a.deliver(ctx, seat.session, seat.playerID, frame)
}

func (a *roomActor) deliver(ctx context.Context, session *wsSession, playerID string, frame wsFrame) {
	if session.peer.enqueue(frame) {
		return
	}
	a.undelivered(ctx, playerID, frame.Type)
}

func (a *roomActor) undelivered(ctx context.Context, playerID, event string) {
	a.svc.metrics.eventUndelivered(ctx, event)
	log.Printf("duel: event undelivered room=%q player=%q event=%q", a.id, playerID, event)
	trace.SpanFromContext(ctx).AddEvent("event undelivered", trace.WithAttributes(
		attribute.String("player.id", playerID),
		attribute.String("event", event),
	))
}
