package session

import (
	"log/slog"

	"roadedit/internal/editor"
	"roadedit/internal/logging"
)

// Tool is the operator's editing intent. ToolEdit and ToolDrawLine are
// resting states; ToolDelete is an action.
type Tool string

const (
	ToolEdit     Tool = "edit"
	ToolDrawLine Tool = "draw_line"
	ToolDelete   Tool = "delete"
)

type DeleteAction int

const (
	ActionNone DeleteAction = iota
	ActionTrashVertices
	ActionConfirmLines
	ActionNotice
)

const (
	NoticeNothingSelected = "Select a point or a line to delete."
	PromptDeleteLines     = "Delete the whole road?"
)

// Outcome reports what a tool activation did.
type Outcome struct {
	Action  DeleteAction
	Deleted bool
	Count   int
	Notice  string
	Prompt  string
}

type selectionKind int

const (
	selectionNone selectionKind = iota
	selectionPoints
	selectionLines
)

type selectionCount int

const (
	countZero selectionCount = iota
	countOne
	countMany
)

type selectionKey struct {
	kind  selectionKind
	count selectionCount
}

var deleteTable = map[selectionKey]DeleteAction{
	{selectionNone, countZero}:   ActionNotice,
	{selectionPoints, countOne}:  ActionTrashVertices,
	{selectionPoints, countMany}: ActionTrashVertices,
	{selectionLines, countOne}:   ActionConfirmLines,
	{selectionLines, countMany}:  ActionConfirmLines,
}

func countOf(n int) selectionCount {
	switch {
	case n <= 0:
		return countZero
	case n == 1:
		return countOne
	default:
		return countMany
	}
}

// classifySelection keys the selection; vertices win over lines.
func classifySelection(points, lines int) (selectionKey, int) {
	switch {
	case points > 0:
		return selectionKey{selectionPoints, countOf(points)}, points
	case lines > 0:
		return selectionKey{selectionLines, countOf(lines)}, lines
	default:
		return selectionKey{selectionNone, countZero}, 0
	}
}

// Controller maps tool activations and engine notifications to engine modes
// and deletions.
type Controller struct {
	engine  Engine
	enabled func() bool
	refresh func()
	logger  *slog.Logger

	state   Tool
	pending bool
}

func NewController(engine Engine, enabled func() bool, refresh func(), logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if refresh == nil {
		refresh = func() {}
	}
	return &Controller{engine: engine, enabled: enabled, refresh: refresh, logger: logger, state: ToolEdit}
}

func (c *Controller) State() Tool { return c.state }

// Pending reports whether a whole-line deletion awaits confirmation.
func (c *Controller) Pending() bool { return c.pending }

func (c *Controller) ready() bool {
	return c.engine != nil && (c.enabled == nil || c.enabled())
}

// Activate performs a tool click. It is a no-op until the engine is ready.
func (c *Controller) Activate(t Tool) (Outcome, error) {
	if !c.ready() {
		return Outcome{}, nil
	}
	c.pending = false
	switch t {
	case ToolDrawLine:
		if err := c.engine.ChangeMode(editor.ModeDrawLineString, editor.ModeOptions{}); err != nil {
			return Outcome{}, err
		}
		c.state = ToolDrawLine
	case ToolEdit:
		ids := c.engine.SelectedIDs()
		var err error
		if len(ids) == 1 {
			err = c.engine.ChangeMode(editor.ModeDirectSelect, editor.ModeOptions{FeatureID: ids[0]})
		} else {
			err = c.engine.ChangeMode(editor.ModeSimpleSelect, editor.ModeOptions{})
		}
		if err != nil {
			return Outcome{}, err
		}
		c.state = ToolEdit
	case ToolDelete:
		return c.delete(), nil
	default:
		c.logger.Debug("ignoring unknown tool", "tool", t)
	}
	return Outcome{}, nil
}

func (c *Controller) delete() Outcome {
	points := len(c.engine.SelectedPoints().Features)
	lines := len(c.engine.SelectedIDs())
	key, n := classifySelection(points, lines)
	action := deleteTable[key]
	switch action {
	case ActionTrashVertices:
		c.engine.Trash()
		c.refresh()
		c.logger.Info("deleted vertices", "count", n)
		return Outcome{Action: action, Deleted: true, Count: n}
	case ActionConfirmLines:
		c.pending = true
		return Outcome{Action: action, Count: n, Prompt: PromptDeleteLines}
	default:
		return Outcome{Action: ActionNotice, Notice: NoticeNothingSelected}
	}
}

// Resolve answers a pending whole-line deletion. Declining changes nothing.
func (c *Controller) Resolve(confirmed bool) Outcome {
	if !c.pending {
		return Outcome{}
	}
	c.pending = false
	if !confirmed || !c.ready() {
		return Outcome{Action: ActionConfirmLines}
	}
	n := len(c.engine.SelectedIDs())
	if n == 0 {
		return Outcome{Action: ActionNotice, Notice: NoticeNothingSelected}
	}
	c.engine.Trash()
	c.refresh()
	c.logger.Info("deleted lines", "count", n)
	return Outcome{Action: ActionConfirmLines, Deleted: true, Count: n}
}

// HandleEvent reacts to engine notifications: leaving the drawing (empty
// selection or a mode change away from draw) returns to edit.
func (c *Controller) HandleEvent(ev editor.Event) {
	switch ev.Type {
	case editor.EventSelectionChange:
		c.pending = false
		if len(ev.Features) == 0 && c.state == ToolDrawLine {
			c.state = ToolEdit
		}
	case editor.EventModeChange:
		if ev.Mode != editor.ModeDrawLineString && c.state == ToolDrawLine {
			c.state = ToolEdit
		}
	}
}
