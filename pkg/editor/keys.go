package editor

import (
	"context"
	"sort"
	"strings"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
)

// Action is an editor command bound to a key chord.
type Action string

// Actions.
const (
	ActionUndo           Action = "undo"
	ActionRedo           Action = "redo"
	ActionDeleteSelected Action = "delete-selected"
	ActionSelectAll      Action = "select-all"
	ActionClearSelection Action = "clear-selection"
	ActionSelectMode     Action = "mode-select"
	ActionAddNodeMode    Action = "mode-add"
	ActionConnectMode    Action = "mode-connect"
	ActionPanMode        Action = "mode-pan"
	ActionToggleGrid     Action = "toggle-grid"
	ActionAutoLayout     Action = "auto-layout"
	ActionSaveSession    Action = "save-session"
)

// DefaultBindings maps normalized chords to actions. "meta" is folded into
// "ctrl" by [NormalizeChord], so the same table serves macOS.
var DefaultBindings = map[string]Action{
	"ctrl+z":       ActionUndo,
	"ctrl+shift+z": ActionRedo,
	"ctrl+y":       ActionRedo,
	"delete":       ActionDeleteSelected,
	"backspace":    ActionDeleteSelected,
	"ctrl+a":       ActionSelectAll,
	"escape":       ActionClearSelection,
	"v":            ActionSelectMode,
	"n":            ActionAddNodeMode,
	"c":            ActionConnectMode,
	"h":            ActionPanMode,
	"g":            ActionToggleGrid,
	"ctrl+l":       ActionAutoLayout,
	"ctrl+s":       ActionSaveSession,
}

var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2}

var keyAliases = map[string]string{
	"cmd":     "ctrl",
	"command": "ctrl",
	"meta":    "ctrl",
	"control": "ctrl",
	"option":  "alt",
	"esc":     "escape",
	"del":     "delete",
}

// NormalizeChord lowercases a chord such as "Shift+Ctrl+Z", resolves
// aliases and orders modifiers as ctrl, alt, shift.
func NormalizeChord(chord string) (string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	var mods []string
	key := ""
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if alias, ok := keyAliases[p]; ok {
			p = alias
		}
		if p == "" {
			return "", apperr.New(apperr.ErrCodeInvalidInput, "invalid key chord %q", chord)
		}
		if _, ok := modifierOrder[p]; ok && i < len(parts)-1 {
			mods = append(mods, p)
			continue
		}
		if key != "" || i != len(parts)-1 {
			return "", apperr.New(apperr.ErrCodeInvalidInput, "invalid key chord %q", chord)
		}
		key = p
	}
	sort.SliceStable(mods, func(i, j int) bool { return modifierOrder[mods[i]] < modifierOrder[mods[j]] })
	return strings.Join(append(dedupe(mods), key), "+"), nil
}

func dedupe(mods []string) []string {
	out := mods[:0]
	for i, m := range mods {
		if i > 0 && mods[i-1] == m {
			continue
		}
		out = append(out, m)
	}
	return out
}

// HandleKey runs the action bound to chord. Events from text-entry fields
// and unbound chords are ignored. It returns the action that ran, if any.
func (e *Editor) HandleKey(ctx context.Context, chord string, inTextField bool) (Action, error) {
	if inTextField {
		return "", nil
	}
	norm, err := NormalizeChord(chord)
	if err != nil {
		return "", err
	}
	action, ok := DefaultBindings[norm]
	if !ok {
		return "", nil
	}
	return action, e.Run(ctx, action)
}

// Run executes action against the editor.
func (e *Editor) Run(ctx context.Context, action Action) error {
	switch action {
	case ActionUndo:
		e.History.Undo()
	case ActionRedo:
		e.History.Redo()
	case ActionDeleteSelected:
		e.Store.DeleteSelected()
	case ActionSelectAll:
		e.Store.SelectNodes(graph.NodeIDs(e.Store.State().Nodes)...)
	case ActionClearSelection:
		e.Store.ClearSelection()
		e.Store.SetMode(graph.ModeSelect)
	case ActionSelectMode:
		e.Store.SetMode(graph.ModeSelect)
	case ActionAddNodeMode:
		e.Store.SetMode(graph.ModeAddNode)
	case ActionConnectMode:
		e.Store.SetMode(graph.ModeConnect)
	case ActionPanMode:
		e.Store.SetMode(graph.ModePan)
	case ActionToggleGrid:
		e.Store.ToggleGrid()
	case ActionAutoLayout:
		_, err := e.AutoLayout(ctx)
		return err
	case ActionSaveSession:
		return e.SaveSession(ctx)
	default:
		return apperr.New(apperr.ErrCodeInvalidInput, "unknown action %q", action)
	}
	return nil
}
