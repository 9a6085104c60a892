package console

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/client"
	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/models"
)

// fastKeys binds digit keys to the named transitions for whichever
// call is currently selected.
var fastKeys = map[string]models.CallStatus{
	"1": models.StatusEnroute,
	"2": models.StatusOnScene,
	"3": models.StatusTransport,
	"4": models.StatusAvailable,
}

type snapshotMsg struct{ snap client.Snapshot }

type refreshErrMsg struct{ err error }

type timelineMsg struct {
	callID string
	events []models.AuditEvent
}

type opResultMsg struct {
	label string
	err   error
}

type queueDepthMsg struct{ depth int }

// Model is the dispatcher console: panes for the call queue, unit
// board, details, timeline and map, all rendered from store snapshots.
// It never mutates dispatch state locally.
type Model struct {
	store      *client.Store
	dispatcher *client.Dispatcher
	api        *client.Client
	queue      *client.Queue

	snap     client.Snapshot
	selected int

	assignMode bool
	unitSel    int

	timeline    []models.AuditEvent
	timelineFor string

	banner     string
	queueDepth int

	// busy is true while a mutation is in flight; the view shows a
	// spinner instead of pretending the write already landed.
	busy bool
	spin spinner.Model

	width  int
	height int
}

// NewModel wires a console model over an already-running core.
func NewModel(api *client.Client, store *client.Store, dispatcher *client.Dispatcher, queue *client.Queue) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		store:      store,
		dispatcher: dispatcher,
		api:        api,
		queue:      queue,
		selected:   -1,
		spin:       sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	m.store.Invalidate()
	return m.pollQueueDepth()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.clampSelection()
		// fresh dispatch state may carry new audit events for the
		// selected call, so the timeline goes stale with it
		m.timelineFor = ""
		return m, m.fetchTimeline()

	case refreshErrMsg:
		// Reads fail soft: keep rendering the previous snapshot.
		m.banner = fmt.Sprintf("refresh failed: %v (showing last known state)", msg.err)
		return m, nil

	case timelineMsg:
		if msg.callID == m.selectedCallID() {
			m.timeline = msg.events
			m.timelineFor = msg.callID
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case opResultMsg:
		m.busy = false
		if msg.err != nil {
			if client.IsQueued(msg.err) {
				m.banner = fmt.Sprintf("%s: offline, queued for replay", msg.label)
			} else {
				m.banner = fmt.Sprintf("%s: %v", msg.label, msg.err)
			}
		} else {
			m.banner = msg.label + ": ok"
		}
		return m, m.pollQueueDepth()

	case queueDepthMsg:
		m.queueDepth = msg.depth
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.assignMode {
		return m.handleAssignKey(key)
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, m.fetchTimeline()
	case "down", "j":
		if m.selected < len(m.snap.Calls)-1 {
			m.selected++
		}
		return m, m.fetchTimeline()
	case "r":
		m.store.Invalidate()
		m.banner = "refresh requested"
		return m, nil
	case "a":
		if m.selectedCallID() == "" {
			m.banner = "select a call before assigning"
			return m, nil
		}
		m.assignMode = true
		m.unitSel = 0
		return m, nil
	}

	// Fast transitions ride the same dispatcher path as every other
	// modality. With no call selected a shortcut is a no-op.
	if to, ok := fastKeys[key]; ok {
		callID := m.selectedCallID()
		if callID == "" {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.transitionCmd(callID, to), m.spin.Tick)
	}
	return m, nil
}

func (m Model) handleAssignKey(key string) (tea.Model, tea.Cmd) {
	available := m.availableUnits()
	switch key {
	case "esc":
		m.assignMode = false
		return m, nil
	case "up", "k":
		if m.unitSel > 0 {
			m.unitSel--
		}
		return m, nil
	case "down", "j":
		if m.unitSel < len(available)-1 {
			m.unitSel++
		}
		return m, nil
	case "enter":
		m.assignMode = false
		if m.unitSel >= len(available) {
			m.banner = "no available unit selected"
			return m, nil
		}
		callID := m.selectedCallID()
		unitID := available[m.unitSel].ID
		m.busy = true
		return m, tea.Batch(m.assignCmd(callID, unitID), m.spin.Tick)
	}
	return m, nil
}

func (m Model) assignCmd(callID, unitID string) tea.Cmd {
	d := m.dispatcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := d.AssignUnit(ctx, callID, unitID)
		return opResultMsg{label: fmt.Sprintf("assign %s to %s", unitID, callID), err: err}
	}
}

func (m Model) transitionCmd(callID string, to models.CallStatus) tea.Cmd {
	d := m.dispatcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := d.Transition(ctx, callID, to, "")
		return opResultMsg{label: fmt.Sprintf("%s -> %s", callID, to), err: err}
	}
}

func (m Model) fetchTimeline() tea.Cmd {
	callID := m.selectedCallID()
	if callID == "" || callID == m.timelineFor {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		events, err := api.Timeline(ctx, callID)
		if err != nil {
			// timeline is a side pane; a failed fetch is not a banner event
			zap.S().Debugw("timeline fetch failed", "call", callID, "error", err)
			return timelineMsg{callID: callID, events: nil}
		}
		return timelineMsg{callID: callID, events: events}
	}
}

func (m Model) pollQueueDepth() tea.Cmd {
	q := m.queue
	if q == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		depth, err := q.Depth(ctx)
		if err != nil {
			return queueDepthMsg{depth: 0}
		}
		return queueDepthMsg{depth: depth}
	}
}

func (m *Model) clampSelection() {
	if len(m.snap.Calls) == 0 {
		m.selected = -1
		return
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(m.snap.Calls) {
		m.selected = len(m.snap.Calls) - 1
	}
}

func (m Model) selectedCallID() string {
	if m.selected < 0 || m.selected >= len(m.snap.Calls) {
		return ""
	}
	return m.snap.Calls[m.selected].ID
}

func (m Model) availableUnits() []models.Unit {
	var out []models.Unit
	for _, u := range m.snap.Units {
		if u.Details.Status == models.UnitAvailable {
			out = append(out, u)
		}
	}
	return out
}

// Run starts the console against the configured dispatch service and
// blocks until the dispatcher quits.
func Run(cfg config.ClientConfig) error {
	tokens := client.StaticToken(cfg.Token)
	api := client.New(cfg.ServerURL, tokens)
	store := client.NewStore(api)

	queue, err := client.OpenQueue(cfg.QueuePath)
	if err != nil {
		return fmt.Errorf("failed to open mutation queue: %w", err)
	}
	defer queue.Close()
	queue.StartCompaction()

	dispatcher := client.NewDispatcher(api, store, queue)

	listener, err := client.NewListener(cfg.ServerURL, cfg.UnitScope, tokens, store, func(ctx context.Context) {
		if n, err := dispatcher.ReplayQueue(ctx); err != nil {
			zap.S().Warnw("queue replay interrupted", "delivered", n, "error", err)
		} else if n > 0 {
			zap.S().Infow("queue replayed", "delivered", n)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to build realtime listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(NewModel(api, store, dispatcher, queue), tea.WithAltScreen())

	store.OnUpdate(func(snap client.Snapshot) { p.Send(snapshotMsg{snap: snap}) })
	store.OnError(func(err error) { p.Send(refreshErrMsg{err: err}) })

	go store.Run(ctx, cfg.RefreshInterval())
	go listener.Run(ctx)

	_, err = p.Run()
	return err
}
