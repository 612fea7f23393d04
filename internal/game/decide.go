package game

import (
	"slices"
	"strings"
	"time"
)

// CommandType names an operation on a game session
type CommandType string

const (
	CommandStart                 CommandType = "start"
	CommandPause                 CommandType = "pause"
	CommandResume                CommandType = "resume"
	CommandEnd                   CommandType = "end"
	CommandCancel                CommandType = "cancel"
	CommandNextTurn              CommandType = "next_turn"
	CommandSkipTurn              CommandType = "skip_turn"
	CommandRecordPronunciation   CommandType = "record_pronunciation"
	CommandEvaluatePronunciation CommandType = "evaluate_pronunciation"
	CommandTick                  CommandType = "tick"
)

// Command is a request to mutate a game session. Only the fields relevant
// to Type are read.
type Command struct {
	Type        CommandType
	Actor       Actor
	Word        string
	Verdict     Verdict
	Notes       string
	Subject     Role
	TimeSpentMs int
	Seconds     int
}

// Decision is the outcome of an accepted command: the next snapshot and the
// actions it appended to the log.
type Decision struct {
	Session GameSession
	Actions []Action
}

// allowedFrom lists the statuses each command may run in
var allowedFrom = map[CommandType][]Status{
	CommandStart:                 {StatusWaiting},
	CommandPause:                 {StatusActive},
	CommandResume:                {StatusPaused},
	CommandEnd:                   {StatusActive, StatusPaused},
	CommandCancel:                {StatusWaiting, StatusActive, StatusPaused},
	CommandNextTurn:              {StatusActive},
	CommandSkipTurn:              {StatusActive},
	CommandRecordPronunciation:   {StatusActive},
	CommandEvaluatePronunciation: {StatusActive},
	CommandTick:                  {StatusActive},
}

// Decide applies cmd to g and returns the resulting snapshot.
//
// Decide is pure: g is never modified, and a rejected command returns a
// *ValidationError or *InvalidStateError with no decision. Status is checked
// before the payload. Every accepted command bumps Version so callers can
// persist the result with an optimistic version check.
func Decide(g GameSession, cmd Command, now func() time.Time) (Decision, error) {
	statuses, known := allowedFrom[cmd.Type]
	if !known {
		return Decision{}, invalid("command", "unknown command "+string(cmd.Type))
	}
	if !slices.Contains(statuses, g.Status) {
		return Decision{}, &InvalidStateError{Command: cmd.Type, Status: g.Status}
	}
	if now == nil {
		now = time.Now
	}
	at := now().UTC()

	next := g
	// Clip so appends never write into the caller's backing array.
	next.Actions = slices.Clip(g.Actions)
	d := decider{game: &next, at: at}

	var err error
	switch cmd.Type {
	case CommandStart:
		d.start()
	case CommandPause:
		err = d.pause(cmd)
	case CommandResume:
		next.Status = StatusActive
		next.State.IsPaused = false
	case CommandEnd:
		d.finish(StatusCompleted)
	case CommandCancel:
		d.finish(StatusCancelled)
	case CommandNextTurn:
		d.advance()
	case CommandSkipTurn:
		err = d.skip(cmd)
	case CommandRecordPronunciation:
		err = d.recordPronunciation(cmd)
	case CommandEvaluatePronunciation:
		err = d.evaluate(cmd)
	case CommandTick:
		err = d.tick(cmd)
	}
	if err != nil {
		return Decision{}, err
	}

	next.Version = g.Version + 1
	next.UpdatedAt = at
	return Decision{Session: next, Actions: d.appended}, nil
}

type decider struct {
	game     *GameSession
	at       time.Time
	appended []Action
}

func (d *decider) start() {
	g := d.game
	g.Status = StatusActive
	g.State.CurrentPlayer = g.Settings.StartingRole
	g.State.TurnNumber = 1
	g.State.CurrentRound = 1
	g.State.TimeRemaining = g.Settings.TimePerTurn
	g.State.IsPaused = false
	started := d.at
	g.StartedAt = &started
}

func (d *decider) pause(cmd Command) error {
	actor, err := d.actor(cmd.Actor)
	if err != nil {
		return err
	}
	d.game.Status = StatusPaused
	d.game.State.IsPaused = true
	d.append(actor, ActionGamePaused, nil)
	return nil
}

func (d *decider) finish(status Status) {
	g := d.game
	g.Status = status
	g.State.IsPaused = false
	completed := d.at
	g.CompletedAt = &completed
}

// advance moves to the next turn, or completes the game when the turn
// bound is reached.
func (d *decider) advance() {
	g := d.game
	g.State.CompletedTurns++
	if g.State.TurnNumber >= g.State.MaxTurns {
		d.finish(StatusCompleted)
		return
	}
	g.State.TurnNumber++
	g.State.CurrentPlayer = g.State.CurrentPlayer.Other()
	g.State.TimeRemaining = g.Settings.TimePerTurn
	g.State.CurrentWord = ""
	g.State.Attempts = 0
	g.State.CurrentRound = g.Settings.RoundFor(g.State.TurnNumber, g.State.MaxTurns, g.State.TotalRounds)
}

func (d *decider) skip(cmd Command) error {
	actor, err := d.actor(cmd.Actor)
	if err != nil {
		return err
	}
	var payload *ActionPayload
	if notes := strings.TrimSpace(cmd.Notes); notes != "" {
		payload = &ActionPayload{Notes: notes}
	}
	d.append(actor, ActionTurnSkipped, payload)
	d.advance()
	return nil
}

func (d *decider) recordPronunciation(cmd Command) error {
	actor, err := d.actor(cmd.Actor)
	if err != nil {
		return err
	}
	word := strings.TrimSpace(cmd.Word)
	if word == "" {
		return invalid("word", "is required")
	}
	if cmd.TimeSpentMs < 0 {
		return invalid("timeSpentMs", "must not be negative")
	}

	g := d.game
	attempts := g.State.Attempts
	if !strings.EqualFold(word, g.State.CurrentWord) {
		attempts = 0
	}
	if g.Settings.MaxAttempts > 0 && attempts >= g.Settings.MaxAttempts {
		return invalid("word", "maximum attempts reached for this word")
	}
	g.State.CurrentWord = word
	g.State.Attempts = attempts + 1
	d.append(actor, ActionWordPronounced, &ActionPayload{Word: word, TimeSpentMs: cmd.TimeSpentMs})
	return nil
}

func (d *decider) evaluate(cmd Command) error {
	actor, err := d.actor(cmd.Actor)
	if err != nil {
		return err
	}
	if actor.Role != RoleSLP {
		return invalid("actor", "only the slp gives verdicts")
	}
	word := strings.TrimSpace(cmd.Word)
	if word == "" {
		return invalid("word", "is required")
	}
	if !cmd.Verdict.Valid() {
		return invalid("verdict", "must be correct, incorrect or partial")
	}
	if cmd.TimeSpentMs < 0 {
		return invalid("timeSpentMs", "must not be negative")
	}

	g := d.game
	subject := cmd.Subject
	if subject == "" {
		subject = g.State.CurrentPlayer.Other()
	}
	if !subject.Valid() {
		return invalid("subject", "must be slp or child")
	}

	points := g.Settings.Points(cmd.Verdict)
	g.State.Score.add(subject, points)
	g.State.CurrentWord = word
	d.append(actor, ActionEvaluationGiven, &ActionPayload{
		Word:        word,
		Verdict:     cmd.Verdict,
		Notes:       strings.TrimSpace(cmd.Notes),
		TimeSpentMs: cmd.TimeSpentMs,
		Subject:     subject,
		Points:      points,
	})

	if g.Settings.AutoAdvance {
		d.advance()
	}
	return nil
}

func (d *decider) tick(cmd Command) error {
	if cmd.Seconds <= 0 {
		return invalid("seconds", "must be positive")
	}
	remaining := d.game.State.TimeRemaining - cmd.Seconds
	if remaining < 0 {
		remaining = 0
	}
	d.game.State.TimeRemaining = remaining
	return nil
}

// actor resolves the command actor against the two participants
func (d *decider) actor(a Actor) (Actor, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return Actor{}, invalid("actor", "is required")
	}
	role := d.game.RoleOf(id)
	if role == "" {
		return Actor{}, invalid("actor", "is not a participant of this game")
	}
	if a.Role != "" && a.Role != role {
		return Actor{}, invalid("actor", "role does not match participant")
	}
	return Actor{ID: id, Role: role}, nil
}

func (d *decider) append(actor Actor, kind ActionKind, payload *ActionPayload) {
	a := Action{
		Seq:     len(d.game.Actions) + 1,
		Actor:   actor,
		Kind:    kind,
		At:      d.at,
		Payload: payload,
	}
	d.game.Actions = append(d.game.Actions, a)
	d.appended = append(d.appended, a)
}
