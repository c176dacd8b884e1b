// Package tui is the terminal front-end: a prompt box, the live generation
// list and a now-playing panel, all rendered from the client stores.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manozcodes/mgpt/internal/client"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/store"
)

const volumeStep = 0.1

// Options configures the App.
type Options struct {
	API           *client.API
	Receiver      client.ReceiverConfig // URL, Attempts and Backoff are used
	TrackDuration time.Duration         // length of placeholder tracks
}

// App is the main TUI model.
type App struct {
	api      *client.API
	gens     *store.Generations
	player   *store.Player
	receiver *client.Receiver
	trackDur time.Duration

	input    textinput.Model
	bar      progress.Model
	selected int
	width    int
	height   int
	message  string
	conn     client.ConnState

	program *tea.Program
}

type (
	storeChangedMsg struct{}
	connMsg         client.ConnState
	receiverDoneMsg struct{ err error }
	submittedMsg    struct{ id string }
	cancelledMsg    struct{ id string }
	errMsg          struct{ err error }
	tickMsg         time.Time
)

// New creates the TUI with fresh stores.
func New(opts Options) *App {
	ti := textinput.New()
	ti.Placeholder = "Describe a song and press Enter"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 80

	a := &App{
		api:      opts.API,
		gens:     store.NewGenerations(),
		player:   store.NewPlayer(),
		trackDur: opts.TrackDuration,
		input:    ti,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		conn:     client.StateConnecting,
	}

	rcfg := opts.Receiver
	rcfg.Resync = opts.API
	rcfg.OnState = func(s client.ConnState) { a.send(connMsg(s)) }
	a.receiver = client.NewReceiver(a.gens, rcfg)
	return a
}

// Generations returns the generation store the App renders.
func (a *App) Generations() *store.Generations { return a.gens }

// Player returns the now-playing store.
func (a *App) Player() *store.Player { return a.player }

// Run starts the receiver and the terminal program. Blocks until the user
// quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.program = tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubGens := a.gens.Subscribe(func([]models.Generation) { a.send(storeChangedMsg{}) })
	defer unsubGens()
	unsubPlayer := a.player.Subscribe(func(store.PlayerState) { a.send(storeChangedMsg{}) })
	defer unsubPlayer()

	go func() {
		err := a.receiver.Run(ctx)
		a.send(receiverDoneMsg{err})
	}()

	_, err := a.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) send(msg tea.Msg) {
	if a.program != nil {
		a.program.Send(msg)
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit

		case "up":
			if a.selected > 0 {
				a.selected--
			}
			return a, nil

		case "down":
			if a.selected < len(a.gens.Snapshot())-1 {
				a.selected++
			}
			return a, nil

		case "enter":
			prompt := strings.TrimSpace(a.input.Value())
			if prompt != "" {
				a.input.SetValue("")
				return a, a.submit(prompt)
			}
			a.playSelected()
			return a, nil

		case "tab":
			a.player.Toggle()
			return a, nil

		case "ctrl+d":
			if g, ok := a.selectedGeneration(); ok {
				a.gens.Remove(g.ID)
				a.clampSelection()
			}
			return a, nil

		case "ctrl+x":
			if g, ok := a.selectedGeneration(); ok && !g.Status.Terminal() {
				return a, a.cancel(g.ID)
			}
			return a, nil

		case "pgup":
			a.player.SetVolume(a.player.State().Volume + volumeStep)
			return a, nil

		case "pgdown":
			a.player.SetVolume(a.player.State().Volume - volumeStep)
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6

	case storeChangedMsg:
		a.clampSelection()

	case connMsg:
		a.conn = client.ConnState(msg)

	case receiverDoneMsg:
		a.conn = client.StateDisconnected
		if msg.err != nil {
			a.message = "Error: " + msg.err.Error()
		}

	case submittedMsg:
		a.message = "Started " + msg.id
		a.selected = 0

	case cancelledMsg:
		a.message = "Cancelled " + msg.id

	case errMsg:
		a.message = "Error: " + msg.err.Error()

	case tickMsg:
		a.player.Advance(time.Second)
		return a, tickCmd()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) submit(prompt string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultClientTimeout)
		defer cancel()

		id, err := a.api.Submit(ctx, prompt)
		if err != nil {
			return errMsg{err}
		}
		// The started event usually wins the race; Add ignores duplicates.
		a.gens.Add(models.Generation{
			ID:        id,
			Prompt:    prompt,
			Status:    models.StatusPending,
			CreatedAt: time.Now().UnixMilli(),
		})
		return submittedMsg{id}
	}
}

func (a *App) cancel(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultClientTimeout)
		defer cancel()

		if err := a.api.Cancel(ctx, id); err != nil {
			return errMsg{err}
		}
		return cancelledMsg{id}
	}
}

func (a *App) playSelected() {
	g, ok := a.selectedGeneration()
	if !ok {
		return
	}
	track, ok := store.TrackFromGeneration(g)
	if !ok {
		a.message = "Only completed tracks can be played"
		return
	}
	track.Artist = "mgpt"
	track.Duration = a.trackDur
	if a.api != nil {
		track.AudioURL = a.api.BaseURL() + track.AudioURL
	}
	a.player.SetTrack(track)
	a.message = ""
}

func (a *App) selectedGeneration() (models.Generation, bool) {
	gens := a.gens.Snapshot()
	if a.selected < 0 || a.selected >= len(gens) {
		return models.Generation{}, false
	}
	return gens[a.selected], true
}

func (a *App) clampSelection() {
	n := len(a.gens.Snapshot())
	a.selected = max(0, min(a.selected, n-1))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("♪ mgpt") + "  " + a.renderConn()
	b.WriteString(header + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(a.width, 40))) + "\n")

	b.WriteString(a.renderList())
	b.WriteString("\n")
	b.WriteString(a.renderPlayer())
	b.WriteString("\n")

	if a.message != "" {
		style := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			style = errorStyle
		}
		b.WriteString(style.Render(a.message))
	}
	b.WriteString("\n")

	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	status := " Enter:generate/play | ↑↓:select | Tab:play/pause | Ctrl+X:cancel | Ctrl+D:remove | PgUp/PgDn:volume | Esc:quit"
	b.WriteString(statusBarStyle.Width(max(a.width, 40)).Render(status))
	return b.String()
}

func (a *App) renderConn() string {
	switch a.conn {
	case client.StateConnected:
		return lipgloss.NewStyle().Foreground(successColor).Render("● connected")
	case client.StateDisconnected:
		return errorStyle.Render("✗ disconnected")
	default:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◌ connecting")
	}
}

func (a *App) renderList() string {
	gens := a.gens.Snapshot()
	if len(gens) == 0 {
		return "\n" + mutedStyle.Render("  No generations yet. Describe a song below and press Enter.") + "\n"
	}

	var lines []string
	for i, g := range gens {
		line := a.renderGeneration(g)
		if i == a.selected {
			lines = append(lines, selectedStyle.Render("▶ "+line))
		} else {
			lines = append(lines, itemStyle.Render("  "+line))
		}
	}

	// Keep the selection visible on short terminals
	if limit := a.height - 12; limit > 0 && len(lines) > limit {
		start := max(0, min(a.selected-limit/2, len(lines)-limit))
		lines = lines[start : start+limit]
	}
	return strings.Join(lines, "\n") + "\n"
}

func (a *App) renderGeneration(g models.Generation) string {
	prompt := truncate(g.Prompt, 40)
	switch g.Status {
	case models.StatusPending:
		return lipgloss.NewStyle().Foreground(warningColor).Render("○ PENDING   ") + prompt
	case models.StatusGenerating:
		return lipgloss.NewStyle().Foreground(cyanColor).Render("◑ GENERATING") + " " +
			a.bar.ViewAs(float64(g.Progress)/100) + " " + prompt
	case models.StatusCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE      ") +
			g.Title + mutedStyle.Render("  "+prompt)
	case models.StatusFailed:
		return errorStyle.Render("✗ FAILED    ") + prompt + "  " +
			errorStyle.Render(g.Error+": "+g.Message)
	}
	return string(g.Status) + " " + prompt
}

func (a *App) renderPlayer() string {
	st := a.player.State()
	if st.Track == nil {
		return panelStyle.Render(mutedStyle.Render("Nothing playing"))
	}

	icon := "❚❚"
	if st.IsPlaying {
		icon = "▶"
	}
	pos := formatTime(st.CurrentTime)
	if st.Track.Duration > 0 {
		pos += " / " + formatTime(st.Track.Duration)
	}
	line := fmt.Sprintf("%s  %s  %s  vol %d%%", icon, st.Track.Title, pos, int(st.Volume*100+0.5))
	return panelStyle.Render(line + "\n" + mutedStyle.Render(st.Track.AudioURL))
}

func formatTime(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
