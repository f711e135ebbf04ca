package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/mindstream-cli/internal/application"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const DefaultPollInterval = 100 * time.Millisecond

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type Options struct {
	PollInterval time.Duration
	// Input defaults to the terminal when nil.
	Input io.Reader
}

type pollMsg time.Time

// Model polls a feed and shows the most recent reading.
type Model struct {
	feed    application.Feed
	every   time.Duration
	spinner spinner.Model
	styles  styles

	connected bool
	received  int
	latest    domain.Reading
	lastEvent domain.Message

	err  error
	done bool
}

func NewModel(feed application.Feed, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	s := newStyles()
	return Model{
		feed:  feed,
		every: opts.PollInterval,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(s.spinner),
		),
		styles: s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pollMsg:
		m.drain()
		select {
		case <-m.feed.Done():
			m.drain()
			m.err = m.feed.Err()
			m.done = true
			return m, tea.Quit
		default:
		}
		return m, m.poll()
	default:
		return m, nil
	}
}

func (m *Model) drain() {
	m.connected = m.feed.IsConnected()

	records, ok := m.feed.Data()
	if !ok {
		return
	}

	m.received += len(records)
	for _, record := range records {
		if record.IsReading() {
			m.latest = record.Reading
			continue
		}
		m.lastEvent = record.Raw
	}
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	if !m.connected {
		return fmt.Sprintf("%s %s", m.spinner.View(), connectingLabel)
	}

	return renderView(m.latest, m.lastEvent, m.received, m.styles)
}

// Err is why the feed stopped, if it did.
func (m Model) Err() error {
	return m.err
}

// Run shows the live view until the user quits, ctx ends or the feed stops.
func Run(ctx context.Context, feed application.Feed, output io.Writer, opts Options) error {
	programOpts := []tea.ProgramOption{
		tea.WithOutput(output),
		tea.WithContext(ctx),
	}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}

	finalModel, err := tea.NewProgram(NewModel(feed, opts), programOpts...).Run()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	}

	result, ok := finalModel.(Model)
	if !ok {
		return ErrUnexpectedRenderModel
	}

	return result.Err()
}
