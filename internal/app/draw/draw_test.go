package draw

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestPickAssignsEveryPrizeWithoutRepeats(t *testing.T) {
	picker := NewPicker(rand.NewSource(42))

	prizes := []string{"A", "B"}
	entrants := []Entrant{
		{UserID: 1, Weight: 1},
		{UserID: 2, Weight: 1},
	}

	got := picker.Pick(prizes, entrants)
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(got))
	}

	winners := map[int64]bool{}
	for i, a := range got {
		if a.PrizeName != prizes[i] {
			t.Fatalf("prize order broken: slot %d got %q, want %q", i, a.PrizeName, prizes[i])
		}
		if winners[a.UserID] {
			t.Fatalf("user %d won twice", a.UserID)
		}
		winners[a.UserID] = true
	}
	if !winners[1] || !winners[2] {
		t.Fatalf("expected both entrants to win, got %v", winners)
	}
}

func TestPickIsDeterministicForAFixedSeed(t *testing.T) {
	prizes := []string{"A", "B", "C"}
	entrants := []Entrant{
		{UserID: 10, Weight: 1},
		{UserID: 20, Weight: 3},
		{UserID: 30, Weight: 2},
		{UserID: 40, Weight: 1},
	}

	first := NewPicker(rand.NewSource(7)).Pick(prizes, entrants)
	second := NewPicker(rand.NewSource(7)).Pick(prizes, entrants)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different draws:\n%v\n%v", first, second)
	}
}

func TestPickLeavesPrizesUnassignedWhenPoolEmpties(t *testing.T) {
	picker := NewPicker(rand.NewSource(1))

	got := picker.Pick([]string{"A", "B", "C"}, []Entrant{{UserID: 5, Weight: 1}})
	if len(got) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(got))
	}
	if got[0].UserID != 5 || got[0].PrizeName != "A" {
		t.Fatalf("expected user 5 to win prize A, got %+v", got[0])
	}
}

func TestPickReturnsNilOnEmptyInput(t *testing.T) {
	picker := NewPicker(rand.NewSource(1))

	if got := picker.Pick(nil, []Entrant{{UserID: 1, Weight: 1}}); got != nil {
		t.Fatalf("expected nil for empty prize list, got %v", got)
	}
	if got := picker.Pick([]string{"A"}, nil); got != nil {
		t.Fatalf("expected nil for empty pool, got %v", got)
	}
}

func TestPickDoesNotMutateTheInputPool(t *testing.T) {
	picker := NewPicker(rand.NewSource(3))

	entrants := []Entrant{
		{UserID: 1, Weight: 1},
		{UserID: 2, Weight: 1},
		{UserID: 3, Weight: 1},
	}
	snapshot := append([]Entrant{}, entrants...)

	picker.Pick([]string{"A", "B"}, entrants)

	if !reflect.DeepEqual(entrants, snapshot) {
		t.Fatalf("input pool was mutated: %v", entrants)
	}
}

func TestPickFavorsHeavierWeights(t *testing.T) {
	prizes := []string{"only"}
	entrants := []Entrant{
		{UserID: 1, Weight: 1},
		{UserID: 2, Weight: 200},
	}

	heavyWins := 0
	for seed := int64(0); seed < 500; seed++ {
		got := NewPicker(rand.NewSource(seed)).Pick(prizes, entrants)
		if got[0].UserID == 2 {
			heavyWins++
		}
	}

	// With a 200:1 ratio the heavy entrant should take nearly every draw.
	if heavyWins < 450 {
		t.Fatalf("heavy entrant won only %d of 500 draws", heavyWins)
	}
}

func TestPickTreatsNonPositiveWeightAsOne(t *testing.T) {
	picker := NewPicker(rand.NewSource(9))

	got := picker.Pick([]string{"A", "B"}, []Entrant{
		{UserID: 1, Weight: 0},
		{UserID: 2, Weight: -3},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(got))
	}
}
