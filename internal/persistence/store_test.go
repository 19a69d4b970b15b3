package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/engine"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/investigation"
)

type store interface {
	Save(ctx context.Context, gs *engine.GameState) error
	Load(ctx context.Context, id string) (*engine.GameState, error)
	List(ctx context.Context) ([]string, error)
	FindInvestigation(ctx context.Context, investigationID string) (string, error)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ascension.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestState(id string) *engine.GameState {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gs := engine.NewGameState(id, time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC), now, 1.5)
	gs.Characters["c-1"] = &characters.Character{
		ID:    "c-1",
		Name:  "Lin",
		Qi:    characters.QiPool{Current: 5, Max: 10},
		Stage: characters.CultivationStage{Level: 2, Progress: 40},
		Effects: []characters.Effect{{
			ID:        "ward",
			Duration:  characters.Hours(3),
			Modifiers: []characters.Modifier{{Kind: characters.ModQi, Value: 1}},
		}},
	}
	gs.Investigations["inv-"+id] = &investigation.Investigation{
		ID: "inv-" + id, Name: "Case", Status: investigation.StatusActive, TimeRemaining: 5,
	}
	return gs
}

func stores(t *testing.T) map[string]store {
	return map[string]store{
		"sqlite": newTestDB(t),
		"memory": NewMemory(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gs := newTestState("g-1")
			if err := s.Save(ctx, gs); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := s.Load(ctx, "g-1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got == gs {
				t.Fatal("load returned the saved pointer")
			}
			c := got.Characters["c-1"]
			if c == nil || c.Qi.Current != 5 || *c.Effects[0].Duration != 3 {
				t.Fatalf("character = %+v", c)
			}
			if !got.CurrentTime.Equal(gs.CurrentTime) || got.TimeMultiplier != 1.5 {
				t.Fatalf("clock = %v x%v", got.CurrentTime, got.TimeMultiplier)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nope")
			if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
				t.Fatalf("err = %v, want not found", err)
			}
		})
	}
}

func TestListAndFindInvestigation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"g-2", "g-1"} {
				if err := s.Save(ctx, newTestState(id)); err != nil {
					t.Fatal(err)
				}
			}

			ids, err := s.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(ids, []string{"g-1", "g-2"}) {
				t.Fatalf("ids = %v", ids)
			}

			gameID, err := s.FindInvestigation(ctx, "inv-g-2")
			if err != nil || gameID != "g-2" {
				t.Fatalf("find = %q, %v", gameID, err)
			}

			// Completed investigations stay findable; dropped ones do not.
			gs := newTestState("g-2")
			gs.Completed = map[string]*investigation.Investigation{"inv-g-2": gs.Investigations["inv-g-2"]}
			delete(gs.Investigations, "inv-g-2")
			gs.Investigations["inv-new"] = &investigation.Investigation{ID: "inv-new", Name: "New"}
			if err := s.Save(ctx, gs); err != nil {
				t.Fatal(err)
			}
			if gameID, _ := s.FindInvestigation(ctx, "inv-g-2"); gameID != "g-2" {
				t.Fatalf("completed investigation lost: %q", gameID)
			}
			if gameID, _ := s.FindInvestigation(ctx, "inv-new"); gameID != "g-2" {
				t.Fatalf("new investigation not indexed: %q", gameID)
			}

			gs.Investigations = map[string]*investigation.Investigation{}
			gs.Completed = nil
			if err := s.Save(ctx, gs); err != nil {
				t.Fatal(err)
			}
			if _, err := s.FindInvestigation(ctx, "inv-new"); !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
				t.Fatalf("err = %v, want not found", err)
			}
		})
	}
}

func TestSaveRejectsInvestigationOwnedElsewhere(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Save(ctx, newTestState("g-1")); err != nil {
				t.Fatal(err)
			}

			other := newTestState("g-2")
			other.Investigations["inv-g-1"] = &investigation.Investigation{ID: "inv-g-1", Name: "Copy"}
			err := s.Save(ctx, other)
			if !errors.Is(err, apperrors.New(apperrors.CodeValidation, "")) {
				t.Fatalf("err = %v, want validation", err)
			}

			if gameID, _ := s.FindInvestigation(ctx, "inv-g-1"); gameID != "g-1" {
				t.Fatalf("index repointed to %q", gameID)
			}
			if _, err := s.Load(ctx, "g-2"); !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
				t.Fatalf("rejected game state was stored: %v", err)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gs := newTestState("g-1")
			s.Save(ctx, gs)

			gs.CurrentTime = gs.CurrentTime.Add(5 * time.Hour)
			gs.Characters["c-1"].Qi.Current = 9
			if err := s.Save(ctx, gs); err != nil {
				t.Fatal(err)
			}

			got, _ := s.Load(ctx, "g-1")
			if got.Characters["c-1"].Qi.Current != 9 || !got.CurrentTime.Equal(gs.CurrentTime) {
				t.Fatalf("overwrite lost: %+v", got.Characters["c-1"].Qi)
			}
		})
	}
}

func TestMeta(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveMeta("last_shutdown", "yesterday"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMeta("last_shutdown")
	if err != nil || got != "yesterday" {
		t.Fatalf("meta = %q, %v", got, err)
	}
}
