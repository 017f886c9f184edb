package main

import (
	"reflect"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/room"
)

// terminal renders room notes and the participant table with pterm. A view
// identical to the last one printed is skipped.
type terminal struct {
	mu   sync.Mutex
	last *room.View
}

func newTerminal() *terminal { return &terminal{} }

func (t *terminal) Status(n room.Note) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.Error {
		pterm.Error.Println(n.Text)
		return
	}
	pterm.Info.Println(n.Text)
}

func (t *terminal) Render(v room.View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil && sameView(*t.last, v) {
		return
	}
	t.last = &v
	printView(v)
}

// show prints the latest view even if it was printed before.
func (t *terminal) show(v room.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &v
	printView(v)
}

func printView(v room.View) {
	rows := [][]string{{"Name", "State", "Status", "Link"}}
	for _, p := range v.Participants {
		rows = append(rows, []string{p.Name, stateLabel(p.State), p.Status, linkLabel(p)})
	}

	pterm.Println()
	pterm.DefaultSection.WithLevel(2).Println(v.Summary)
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		pterm.Println(v.Summary)
	}
	pterm.Println()
}

func sameView(a, b room.View) bool {
	return a.Role == b.Role &&
		a.Summary == b.Summary &&
		a.LocalState == b.LocalState &&
		reflect.DeepEqual(a.Participants, b.Participants)
}

func stateLabel(s protocol.State) string {
	switch s {
	case protocol.StateHeart:
		return pterm.LightRed("♥ heart")
	case protocol.StateFriend:
		return pterm.LightYellow("friend")
	case protocol.StatePending:
		return pterm.Gray("pending")
	case protocol.StateIdle:
		return pterm.Gray("idle")
	default:
		return string(s)
	}
}

func linkLabel(p protocol.Participant) string {
	if p.Hint == "" {
		return "-"
	}
	switch p.Quality {
	case protocol.QualityExcellent, protocol.QualityGood:
		return pterm.Green(p.Hint)
	case protocol.QualityFair:
		return pterm.Yellow(p.Hint)
	case protocol.QualityPoor:
		return pterm.Red(p.Hint)
	default:
		return p.Hint
	}
}
