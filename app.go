package main

import (
	"os"
	"path/filepath"
	"strings"

	"bmchat/bubble"
	"bmchat/config"
	"bmchat/history"
	"bmchat/mpris"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const headerLines = 2 // title and a blank line

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D7D8A2"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#DDC074"))
)

// listKeys are the program level bindings.
type listKeys struct {
	Next      key.Binding
	Prev      key.Binding
	Downloads key.Binding
	Quit      key.Binding
}

func (k listKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Downloads, k.Quit}
}

func (k listKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// App is the chat window: a scrollable column of bubbles, one focused.
type App struct {
	bubbles []bubble.Model
	cursor  int // focused bubble
	offset  int // first bubble on screen
	visible int // bubbles on screen starting at offset

	width, height int

	// downloads panel, shown instead of the list
	hist          *history.Store // nil without history
	downloads     []history.Entry
	showDownloads bool

	keys  listKeys
	help  help.Model
	media *mpris.Server // nil when disabled
	log   zerolog.Logger
}

// NewApp takes ownership of bubbles and focuses the newest one. srv, if
// not nil, follows the focused bubble; hist, if not nil, backs the
// downloads panel.
func NewApp(bubbles []bubble.Model, km config.Keymap, srv *mpris.Server, hist *history.Store, log zerolog.Logger) *App {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		w, h = 80, 24
	}
	a := &App{
		bubbles: bubbles,
		width:   w,
		height:  h,
		keys: listKeys{
			Next:      km.FocusNext.Binding("next"),
			Prev:      km.FocusPrev.Binding("previous"),
			Downloads: km.Downloads.Binding("downloads"),
			Quit:      km.Quit.Binding("quit"),
		},
		hist:  hist,
		help:  help.New(),
		media: srv,
		log:   log,
	}
	if len(bubbles) > 0 {
		a.cursor = len(bubbles) - 1
		a.bubbles[a.cursor] = a.bubbles[a.cursor].Focus()
		a.publishFocus()
	}
	a.scrollToCursor()
	return a
}

// publishFocus hands the focused player to the media key server.
func (a *App) publishFocus() {
	if a.media == nil || len(a.bubbles) == 0 {
		return
	}
	b := a.bubbles[a.cursor]
	a.media.SetPlayer(b.Player(), b.Message())
}

func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.bubbles)+1)
	cmds = append(cmds, tea.HideCursor)
	for _, b := range a.bubbles {
		cmds = append(cmds, b.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.help.Width = msg.Width
		a.scrollToCursor()
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.Dispose()
			return a, tea.Quit
		case key.Matches(msg, a.keys.Downloads):
			a.toggleDownloads()
			return a, nil
		case a.showDownloads:
			return a, nil
		case key.Matches(msg, a.keys.Next):
			a.moveFocus(1)
			return a, nil
		case key.Matches(msg, a.keys.Prev):
			a.moveFocus(-1)
			return a, nil
		}
		if len(a.bubbles) == 0 {
			return a, nil
		}
		var cmd tea.Cmd
		a.bubbles[a.cursor], cmd = a.bubbles[a.cursor].Update(msg)
		a.layout()
		return a, cmd

	case tea.MouseMsg:
		if a.showDownloads {
			return a, nil
		}
		var cmds []tea.Cmd
		for i := a.offset; i < a.offset+a.visible; i++ {
			var cmd tea.Cmd
			a.bubbles[i], cmd = a.bubbles[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)
	}

	// Snapshots, download results and spinner ticks; each bubble picks its own.
	cmds := make([]tea.Cmd, 0, len(a.bubbles))
	for i := range a.bubbles {
		var cmd tea.Cmd
		a.bubbles[i], cmd = a.bubbles[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	if _, ok := msg.(bubble.SnapshotMsg); ok && a.media != nil {
		a.media.Refresh()
	}
	a.layout()
	return a, tea.Batch(cmds...)
}

// toggleDownloads opens or closes the downloads panel. Opening it reloads
// the history and forgets entries whose file was deleted since.
func (a *App) toggleDownloads() {
	if a.showDownloads || a.hist == nil {
		a.showDownloads = false
		return
	}
	entries, err := a.hist.Entries()
	if err != nil {
		a.log.Warn().Err(err).Msg("read download history")
	}
	a.downloads = a.downloads[:0]
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			if err := a.hist.Forget(e.MessageID); err != nil {
				a.log.Warn().Err(err).Str("message", e.MessageID).Msg("forget download")
			}
			continue
		}
		a.downloads = append(a.downloads, e)
	}
	a.showDownloads = true
}

func (a *App) moveFocus(delta int) {
	if len(a.bubbles) == 0 {
		return
	}
	next := min(max(a.cursor+delta, 0), len(a.bubbles)-1)
	if next == a.cursor {
		return
	}
	a.bubbles[a.cursor] = a.bubbles[a.cursor].Blur()
	a.cursor = next
	a.bubbles[a.cursor] = a.bubbles[a.cursor].Focus()
	a.publishFocus()
	a.scrollToCursor()
}

// scrollToCursor moves the window so the focused bubble is on screen.
func (a *App) scrollToCursor() {
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	a.layout()
	for a.offset < a.cursor && a.cursor >= a.offset+a.visible {
		a.offset++
		a.layout()
	}
}

// layout places the bubbles from offset down and records how many fit.
func (a *App) layout() {
	y := headerLines
	bottom := a.height - 1 // help line
	a.visible = 0
	for i := a.offset; i < len(a.bubbles); i++ {
		view := a.bubbles[i].View()
		h := lipgloss.Height(view)
		if a.visible > 0 && y+h > bottom {
			break
		}
		x := 0
		if a.bubbles[i].Align() == lipgloss.Right {
			x = max(a.width-lipgloss.Width(view), 0)
		}
		a.bubbles[i] = a.bubbles[i].SetOrigin(x, y)
		y += h
		a.visible++
	}
}

func (a *App) View() string {
	var sb strings.Builder
	if a.showDownloads {
		sb.WriteString(titleStyle.Render("bmchat · downloads"))
		sb.WriteString("\n\n")
		a.writeDownloads(&sb)
	} else {
		sb.WriteString(titleStyle.Render("bmchat"))
		sb.WriteString("\n\n")
		for i := a.offset; i < a.offset+a.visible; i++ {
			b := a.bubbles[i]
			sb.WriteString(lipgloss.PlaceHorizontal(a.width, b.Align(), b.View()))
			sb.WriteString("\n")
		}
	}

	used := lipgloss.Height(sb.String()) - 1
	if pad := a.height - 1 - used; pad > 0 {
		sb.WriteString(strings.Repeat("\n", pad))
	}

	var hint string
	switch {
	case a.showDownloads:
		hint = a.help.ShortHelpView([]key.Binding{a.keys.Downloads, a.keys.Quit})
	case len(a.bubbles) > 0:
		hint = a.help.ShortHelpView(append(a.bubbles[a.cursor].Keys().ShortHelp(), a.keys.ShortHelp()...))
	}
	sb.WriteString(hintStyle.Render(hint))
	return sb.String()
}

// writeDownloads lists saved files, newest first, as many as fit.
func (a *App) writeDownloads(sb *strings.Builder) {
	if len(a.downloads) == 0 {
		sb.WriteString(hintStyle.Render("Nothing downloaded yet."))
		sb.WriteString("\n")
		return
	}
	rows := max(a.height-headerLines-1, 1)
	for i := len(a.downloads) - 1; i >= 0 && rows > 0; i-- {
		e := a.downloads[i]
		line := e.SavedAt.Local().Format("2006-01-02 15:04") + "  " + filepath.Base(e.Path) + "  " + filepath.Dir(e.Path)
		sb.WriteString(lipgloss.NewStyle().MaxWidth(a.width).Render(line))
		sb.WriteString("\n")
		rows--
	}
}

// Dispose releases every player. It is safe to call more than once.
func (a *App) Dispose() {
	for i := range a.bubbles {
		a.bubbles[i] = a.bubbles[i].Dispose()
	}
}
