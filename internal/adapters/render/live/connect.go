package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/mindstream-cli/internal/application"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ConnectModel shows how long the stream has been waiting for the headset's
// first real reading.
type ConnectModel struct {
	feed    application.Feed
	every   time.Duration
	spinner spinner.Model
	styles  styles

	started   time.Time
	waited    time.Duration
	connected bool

	err  error
	done bool
}

func NewConnectModel(feed application.Feed, opts Options) ConnectModel {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	s := newStyles()
	return ConnectModel{
		feed:  feed,
		every: opts.PollInterval,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(s.spinner),
		),
		styles:  s,
		started: time.Now(),
	}
}

func (m ConnectModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m ConnectModel) poll() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m ConnectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pollMsg:
		m.waited = time.Time(msg).Sub(m.started)
		if m.feed.IsConnected() {
			m.connected = true
			m.done = true
			return m, tea.Quit
		}
		select {
		case <-m.feed.Done():
			// The last record may have connected the feed before it stopped.
			m.connected = m.feed.IsConnected()
			if !m.connected {
				m.err = application.StreamEnded(m.feed.Err())
			}
			m.done = true
			return m, tea.Quit
		default:
		}
		return m, m.poll()
	default:
		return m, nil
	}
}

func (m ConnectModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		connectingLabel,
		m.styles.header.Render(fmt.Sprintf("%.1fs", m.waited.Seconds())),
	)
}

// Waited is the time from starting the model to the poll that saw the
// connection.
func (m ConnectModel) Waited() time.Duration {
	return m.waited
}

func (m ConnectModel) Err() error {
	return m.err
}

// Connect shows the connecting spinner on output until feed connects and
// returns how long that took. It fails when ctx ends or the feed stops first.
func Connect(ctx context.Context, feed application.Feed, output io.Writer, opts Options) (time.Duration, error) {
	p := tea.NewProgram(
		NewConnectModel(feed, opts),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return 0, ctx.Err()
		}
		return 0, err
	}

	result, ok := finalModel.(ConnectModel)
	if !ok {
		return 0, ErrUnexpectedRenderModel
	}

	return result.Waited(), result.Err()
}
