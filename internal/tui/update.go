package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/jv-vogler/cm42-central/internal/board"
)

// Update handles all messages and updates the model.
// Implements tea.Model interface.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Check if context is cancelled (graceful shutdown)
	select {
	case <-m.ctx.Done():
		return m, tea.Quit
	default:
	}

	switch msg := msg.(type) {
	case SnapshotMsg:
		return m, m.handleSnapshot(msg)

	case EventMsg:
		return m, m.handleEvent(msg)

	case ReplayMsg:
		return m, m.handleReplay(msg)

	case MutationMsg:
		return m, m.handleMutation(msg)

	case LinksMsg:
		m.handleLinks(msg)
		return m, nil

	case StreamClosedMsg:
		m.connection = Lost
		m.notice = "Connection lost; press " + m.keys.Resync.Help().Key + " to reload"
		return m, nil

	case tea.KeyPressMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSnapshot(msg SnapshotMsg) tea.Cmd {
	if msg.Err != nil {
		m.err = msg.Err
		slog.Error("failed to load board", "project_id", m.project.ID, "error", msg.Err)
		return nil
	}
	m.err = nil
	m.projected = msg.Projected
	if err := m.board.Load(msg.Stories, msg.Seq); err != nil {
		m.err = err
		return nil
	}
	m.refreshSearch()
	return tea.Batch(m.replayIfGap(), m.linksCmd())
}

func (m *Model) handleEvent(msg EventMsg) tea.Cmd {
	// Continue listening for more events
	next := listen(m.ctx, m.stream)

	if _, err := m.board.Apply(msg.Event); err != nil {
		if !errors.Is(err, board.ErrForeignEvent) {
			slog.Warn("failed to apply event", "seq", msg.Event.SequenceID, "error", err)
			m.notice = fmt.Sprintf("Event %d could not be applied", msg.Event.SequenceID)
		}
		return next
	}
	m.refreshSearch()
	return tea.Batch(next, m.replayIfGap(), m.linksCmd())
}

func (m *Model) handleReplay(msg ReplayMsg) tea.Cmd {
	if msg.Confirms != "" {
		// accepted: the event, if the change made one, is in this replay
		defer m.board.Withdraw(msg.Confirms)
	}
	if msg.Err != nil {
		slog.Error("failed to replay events", "project_id", m.project.ID, "error", msg.Err)
		m.notice = "Replay failed: " + msg.Err.Error()
		return nil
	}
	if err := m.board.Replay(slices.Values(msg.Events)); err != nil {
		m.notice = "Replay failed: " + err.Error()
		return nil
	}
	m.refreshSearch()
	return m.linksCmd()
}

// handleMutation settles a proposal. Either way the replica catches up with the
// store, so a refusal caused by a change it had not seen yet shows that change.
func (m *Model) handleMutation(msg MutationMsg) tea.Cmd {
	if msg.Err != nil {
		m.board.Reject(msg.MutationID, msg.Err)
		return replay(m.ctx, m.store, m.project.ID, m.board.LastSeq())
	}
	return confirm(m.ctx, m.store, m.project.ID, m.board.LastSeq(), msg.MutationID)
}

func (m *Model) handleLinks(msg LinksMsg) {
	s, ok := m.currentStory()
	if !m.showStory || !ok || s.ID != msg.StoryID {
		return
	}
	m.linksFor = msg.StoryID
	m.links = msg.Links
	m.linksErr = msg.Err
}

// linksCmd resolves the references of the story in the detail view.
func (m *Model) linksCmd() tea.Cmd {
	if !m.showStory || m.resolver == nil {
		return nil
	}
	s, ok := m.currentStory()
	if !ok {
		return nil
	}
	return resolveLinks(m.ctx, m.resolver, s)
}

// replayIfGap asks the store for the events the replica is missing.
func (m *Model) replayIfGap() tea.Cmd {
	if _, gap := m.board.Gap(); !gap {
		return nil
	}
	return replay(m.ctx, m.store, m.project.ID, m.board.LastSeq())
}

// handleKey dispatches key presses.
func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	m.notice = ""

	if m.showHelp || m.showStory {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return tea.Quit
		case msg.String() == "esc",
			key.Matches(msg, m.keys.Help),
			key.Matches(msg, m.keys.ShowStory):
			m.showHelp = false
			m.showStory = false
			m.links, m.linksFor, m.linksErr = nil, 0, nil
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.PrevColumn):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.selectedStory = 0
		}
	case key.Matches(msg, m.keys.NextColumn):
		if m.selectedColumn < len(m.columns())-1 {
			m.selectedColumn++
			m.selectedStory = 0
		}
	case key.Matches(msg, m.keys.PrevStory):
		if m.selectedStory > 0 {
			m.selectedStory--
		}
	case key.Matches(msg, m.keys.NextStory):
		if m.selectedStory < len(m.partition()[m.currentColumn()])-1 {
			m.selectedStory++
		}
	case key.Matches(msg, m.keys.ToggleColumn):
		name := m.currentColumn()
		if m.visibility.Toggle(name) {
			m.notice = string(name) + " hidden"
		} else {
			m.notice = string(name) + " shown"
		}
	case key.Matches(msg, m.keys.ShowStory):
		if _, ok := m.currentStory(); ok {
			m.showStory = true
			return m.linksCmd()
		}
	case key.Matches(msg, m.keys.Resync):
		if m.stream != nil && m.connection == Lost {
			m.notice = "Reloaded; live updates stay off until restart"
		}
		return m.load()
	case key.Matches(msg, m.keys.Action):
		return m.act(int(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.MoveLeft):
		return m.move(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.move(1)
	case key.Matches(msg, m.keys.MoveUp):
		return m.shift(-1)
	case key.Matches(msg, m.keys.MoveDown):
		return m.shift(1)
	}
	return nil
}
