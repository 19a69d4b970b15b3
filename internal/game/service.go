// Package game is the service boundary around the simulation engine. It
// loads a game state, runs one engine operation against it under a
// per-game lock, saves the result and publishes the events.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/ascension/internal/actions"
	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/engine"
	"github.com/talgya/ascension/internal/entropy"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/investigation"
)

// Store persists game states.
//
//go:generate go tool mockgen -destination=./mocks/store_mock.go -package=mocks . Store
type Store interface {
	Load(ctx context.Context, id string) (*engine.GameState, error)
	Save(ctx context.Context, gs *engine.GameState) error
	List(ctx context.Context) ([]string, error)
	FindInvestigation(ctx context.Context, investigationID string) (string, error)
}

// Options tunes a Service.
type Options struct {
	TimeMultiplier float64 // default for new game states
	Concurrency    int     // parallel game states in AdvanceAll
}

// Service runs engine operations against stored game states.
type Service struct {
	sim    *engine.Simulator
	store  Store
	sink   engine.Sink
	rng    *entropy.Factory
	tracer trace.Tracer
	locks  keyedMutex

	timeMultiplier float64
	concurrency    int
}

// NewService wires a service. sink and rng may be nil.
func NewService(sim *engine.Simulator, store Store, sink engine.Sink, rng *entropy.Factory, opts Options) *Service {
	if opts.TimeMultiplier <= 0 {
		opts.TimeMultiplier = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		sim:            sim,
		store:          store,
		sink:           sink,
		rng:            rng,
		tracer:         otel.Tracer("ascension/game"),
		timeMultiplier: opts.TimeMultiplier,
		concurrency:    opts.Concurrency,
	}
}

// CreateOptions describes a new game state. Zero values take defaults.
type CreateOptions struct {
	InitialTime    *time.Time              `json:"initial_time,omitempty"`
	TimeMultiplier *float64                `json:"time_multiplier,omitempty"`
	Characters     []*characters.Character `json:"characters,omitempty"`
}

// CreateGameState builds, stores and announces a new game state.
func (s *Service) CreateGameState(ctx context.Context, opts CreateOptions) (gs *engine.GameState, err error) {
	ctx, span := s.tracer.Start(ctx, "game.CreateGameState")
	defer func() { finish(span, err) }()

	mult := s.timeMultiplier
	if opts.TimeMultiplier != nil {
		mult = *opts.TimeMultiplier
	}
	if mult < 0 || math.IsNaN(mult) {
		return nil, apperrors.Validation("time multiplier must not be negative")
	}
	if mult == 0 {
		mult = s.timeMultiplier
	}

	now := s.sim.Now()
	start := now
	if opts.InitialTime != nil {
		start = *opts.InitialTime
	}
	gs = engine.NewGameState(uuid.NewString(), start, now, mult)
	span.SetAttributes(attribute.String("game_state.id", gs.ID))

	var events []engine.Event
	for _, c := range opts.Characters {
		ev, err := s.sim.AddCharacter(gs, c)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := s.store.Save(ctx, gs); err != nil {
		return nil, fmt.Errorf("save game state %s: %w", gs.ID, err)
	}
	created := engine.NewEvent(engine.EventStateUpdated, gs.ID, now, map[string]any{
		"reason":     "game_state_created",
		"characters": len(gs.Characters),
	})
	engine.PublishAll(s.sink, append([]engine.Event{created}, events...))

	slog.Info("game state created", "game", gs.ID, "characters", len(gs.Characters), "multiplier", mult)
	return gs, nil
}

// Get returns a game state.
func (s *Service) Get(ctx context.Context, id string) (*engine.GameState, error) {
	ctx, span := s.tracer.Start(ctx, "game.Get", trace.WithAttributes(attribute.String("game_state.id", id)))
	gs, err := s.store.Load(ctx, id)
	finish(span, err)
	return gs, err
}

// List returns every stored game state id.
func (s *Service) List(ctx context.Context) ([]string, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list game states: %w", err)
	}
	return ids, nil
}

// AddCharacter places a character in a game state.
func (s *Service) AddCharacter(ctx context.Context, gameStateID string, c *characters.Character) (err error) {
	ctx, span := s.tracer.Start(ctx, "game.AddCharacter", trace.WithAttributes(
		attribute.String("game_state.id", gameStateID),
		attribute.String("character.id", c.ID),
	))
	defer func() { finish(span, err) }()

	_, err = s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		ev, err := s.sim.AddCharacter(gs, c)
		if err != nil {
			return nil, err
		}
		return []engine.Event{ev}, nil
	})
	return err
}

// CreateInvestigation opens an investigation in a game state. An empty id is
// assigned one.
func (s *Service) CreateInvestigation(ctx context.Context, gameStateID string, inv *investigation.Investigation) (out *investigation.Investigation, err error) {
	ctx, span := s.tracer.Start(ctx, "game.CreateInvestigation", trace.WithAttributes(attribute.String("game_state.id", gameStateID)))
	defer func() { finish(span, err) }()

	inv = inv.Clone()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("investigation.id", inv.ID))

	// Investigation ids address progress and lead calls on their own, so
	// they are unique across every game state.
	owner, err := s.store.FindInvestigation(ctx, inv.ID)
	switch {
	case err == nil:
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "investigation already exists: "+inv.ID,
			map[string]string{"game_state_id": owner})
	case apperrors.CodeOf(err) != apperrors.CodeNotFound:
		return nil, fmt.Errorf("find investigation %s: %w", inv.ID, err)
	}

	gs, err := s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		ev, err := s.sim.OpenInvestigation(gs, inv)
		if err != nil {
			return nil, err
		}
		return []engine.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return gs.Investigations[inv.ID], nil
}

// AddGlobalEvent schedules a world event in a game state.
func (s *Service) AddGlobalEvent(ctx context.Context, gameStateID string, ev engine.GlobalEvent) (out engine.GlobalEvent, err error) {
	ctx, span := s.tracer.Start(ctx, "game.AddGlobalEvent", trace.WithAttributes(attribute.String("game_state.id", gameStateID)))
	defer func() { finish(span, err) }()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	gs, err := s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		e, err := s.sim.AddGlobalEvent(gs, ev)
		if err != nil {
			return nil, err
		}
		return []engine.Event{e}, nil
	})
	if err != nil {
		return engine.GlobalEvent{}, err
	}
	for _, g := range gs.GlobalEvents {
		if g.ID == ev.ID {
			return g, nil
		}
	}
	return ev, nil
}

// AdvanceTime moves a game state forward by hours. Out-of-range hours are
// rejected before the game state is read.
func (s *Service) AdvanceTime(ctx context.Context, gameStateID string, hours int) (out engine.Outcome, err error) {
	ctx, span := s.tracer.Start(ctx, "game.AdvanceTime", trace.WithAttributes(
		attribute.String("game_state.id", gameStateID),
		attribute.Int("hours", hours),
	))
	defer func() { finish(span, err) }()

	if err := s.sim.ValidateHours(hours); err != nil {
		return engine.Outcome{}, err
	}
	_, err = s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		out, err = s.sim.AdvanceTime(gs, hours)
		if err != nil {
			return nil, err
		}
		return out.Events, nil
	})
	if err != nil {
		return engine.Outcome{}, err
	}
	span.SetAttributes(
		attribute.Int("events", len(out.Events)),
		attribute.Int("failed", len(out.Failed)),
	)
	slog.Info("time advanced", "game", gameStateID, "hours", hours,
		"events", len(out.Events), "failed", len(out.Failed))
	return out, nil
}

// ResolveAction resolves an action for a character. The caller's action is
// not modified.
func (s *Service) ResolveAction(ctx context.Context, gameStateID, characterID string, a *actions.Action) (res actions.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "game.ResolveAction", trace.WithAttributes(
		attribute.String("game_state.id", gameStateID),
		attribute.String("character.id", characterID),
		attribute.String("action.id", a.ID),
	))
	defer func() { finish(span, err) }()

	a = a.Clone()
	_, err = s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		var ev engine.Event
		res, ev, err = s.sim.ResolveAction(gs, characterID, a, s.rng.For(gameStateID))
		if err != nil {
			return nil, err
		}
		return []engine.Event{ev}, nil
	})
	if err != nil {
		return actions.Result{}, err
	}
	span.SetAttributes(attribute.Bool("action.success", res.Success))
	return res, nil
}

// UpdateInvestigationProgress records progress on a sub-objective. The game
// state is found through the investigation.
func (s *Service) UpdateInvestigationProgress(ctx context.Context, investigationID, subObjectiveID string, progress float64, characterID string) (upd investigation.Update, err error) {
	ctx, span := s.tracer.Start(ctx, "game.UpdateInvestigationProgress", trace.WithAttributes(
		attribute.String("investigation.id", investigationID),
		attribute.String("character.id", characterID),
	))
	defer func() { finish(span, err) }()

	gameStateID, err := s.store.FindInvestigation(ctx, investigationID)
	if err != nil {
		return investigation.Update{}, err
	}
	span.SetAttributes(attribute.String("game_state.id", gameStateID))

	_, err = s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		var events []engine.Event
		upd, events, err = s.sim.UpdateInvestigationProgress(gs, investigationID, subObjectiveID, progress, characterID, s.rng.For(gameStateID))
		return events, err
	})
	if err != nil {
		return investigation.Update{}, err
	}
	if upd.Completed {
		slog.Info("investigation complete", "game", gameStateID, "investigation", investigationID)
	}
	return upd, nil
}

// ActiveLeads lists the leads of an investigation still worth pursuing.
func (s *Service) ActiveLeads(ctx context.Context, investigationID string) ([]investigation.Lead, error) {
	inv, err := s.findInvestigation(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	return inv.ActiveLeads(), nil
}

// ExamineLead moves a lead from unexamined to active for a character.
func (s *Service) ExamineLead(ctx context.Context, investigationID, leadID, characterID string) (lead investigation.Lead, err error) {
	ctx, span := s.tracer.Start(ctx, "game.ExamineLead", trace.WithAttributes(
		attribute.String("investigation.id", investigationID),
		attribute.String("lead.id", leadID),
	))
	defer func() { finish(span, err) }()

	gameStateID, err := s.store.FindInvestigation(ctx, investigationID)
	if err != nil {
		return investigation.Lead{}, err
	}
	gs, err := s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		ev, err := s.sim.ExamineLead(gs, investigationID, leadID, characterID)
		if err != nil {
			return nil, err
		}
		return []engine.Event{ev}, nil
	})
	if err != nil {
		return investigation.Lead{}, err
	}
	l, _ := gs.Investigations[investigationID].Lead(leadID)
	return *l, nil
}

// ExhaustLead marks an active lead as followed to its end.
func (s *Service) ExhaustLead(ctx context.Context, investigationID, leadID string) (investigation.Lead, error) {
	gameStateID, err := s.store.FindInvestigation(ctx, investigationID)
	if err != nil {
		return investigation.Lead{}, err
	}
	gs, err := s.mutate(ctx, gameStateID, func(gs *engine.GameState) ([]engine.Event, error) {
		ev, err := s.sim.ExhaustLead(gs, investigationID, leadID)
		if err != nil {
			return nil, err
		}
		return []engine.Event{ev}, nil
	})
	if err != nil {
		return investigation.Lead{}, err
	}
	l, _ := gs.Investigations[investigationID].Lead(leadID)
	return *l, nil
}

// AdvanceAll advances every game state by baseHours scaled by its own time
// multiplier. Game states run in parallel; one failing does not stop the
// others and every failure is returned joined.
func (s *Service) AdvanceAll(ctx context.Context, baseHours int) ([]engine.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "game.AdvanceAll", trace.WithAttributes(attribute.Int("base_hours", baseHours)))
	defer span.End()

	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		outcomes []engine.Outcome
		errs     []error
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			var out engine.Outcome
			_, err := s.mutate(ctx, id, func(gs *engine.GameState) ([]engine.Event, error) {
				var err error
				out, err = s.sim.AdvanceTime(gs, gs.StepHours(baseHours, s.sim.MaxHours))
				if err != nil {
					return nil, err
				}
				return out.Events, nil
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("advance %s: %w", id, err))
				return nil
			}
			outcomes = append(outcomes, out)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(outcomes, func(a, b engine.Outcome) int { return strings.Compare(a.GameStateID, b.GameStateID) })
	err = errors.Join(errs...)
	finish(span, err)
	slog.Info("all game states advanced", "games", humanize.Comma(int64(len(outcomes))), "failed", len(errs))
	return outcomes, err
}

// mutate runs fn against a freshly loaded game state under the game's lock,
// then saves and publishes. Nothing is saved when fn fails.
func (s *Service) mutate(ctx context.Context, gameStateID string, fn func(gs *engine.GameState) ([]engine.Event, error)) (*engine.GameState, error) {
	unlock := s.locks.Lock(gameStateID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gs, err := s.store.Load(ctx, gameStateID)
	if err != nil {
		return nil, err
	}
	events, err := fn(gs)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, gs); err != nil {
		return nil, fmt.Errorf("save game state %s: %w", gameStateID, err)
	}
	engine.PublishAll(s.sink, events)
	return gs, nil
}

func (s *Service) findInvestigation(ctx context.Context, investigationID string) (*investigation.Investigation, error) {
	gameStateID, err := s.store.FindInvestigation(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	gs, err := s.store.Load(ctx, gameStateID)
	if err != nil {
		return nil, err
	}
	if inv, ok := gs.Completed[investigationID]; ok {
		return inv, nil
	}
	return gs.Investigation(investigationID)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
