package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sejinpk/maru"
	"github.com/sejinpk/maru/richtext"
)

var _ tea.Model = Model{}

const sidebarWidth = 30

// focusArea identifies which component receives typed input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSessions
	focusLocation
)

// Model is the Bubble Tea model for the maru TUI.
type Model struct {
	// Input is the message input. Exported for test access.
	Input textinput.Model
	// Location is the location gate input. Exported for test access.
	Location textinput.Model
	// Viewport is the scrollable transcript area. Exported for test access.
	Viewport viewport.Model

	store *maru.Store
	auth  Authenticator
	marks Bookmarker
	theme maru.Theme
	style Styles
	cfg   Config

	spin   spinner.Model
	focus  focusArea
	cursor int // sidebar cursor into the session directory
	status string
	err    error
	ready  bool
	width  int
	height int
}

// New creates a TUI Model over the given store and collaborators.
func New(store *maru.Store, auth Authenticator, marks Bookmarker, theme maru.Theme, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "메시지를 입력하세요..."
	input.Prompt = "> "
	input.Focus()
	input.CharLimit = 0

	loc := textinput.New()
	loc.Placeholder = "위치 (예: 서울)"
	loc.Prompt = ""
	loc.SetValue(store.Location())

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return Model{
		Input:    input,
		Location: loc,
		store:    store,
		auth:     auth,
		marks:    marks,
		theme:    theme,
		style:    NewStyles(theme),
		cfg:      cfg,
		spin:     sp,
	}
}

// Err returns the last surfaced error, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		listenForChange(m.cfg.Changes),
		m.listSessionsCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeChangedMsg:
		m = m.refresh()
		return m, listenForChange(m.cfg.Changes)

	case opDoneMsg:
		m.err = msg.err
		if msg.input != "" && isSendPrecondition(msg.err) && m.Input.Value() == "" {
			m.Input.SetValue(msg.input)
			m.Input.CursorEnd()
		}
		m = m.refresh()
		return m, nil

	case loggedOutMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Location, cmd = m.Location.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyCtrlL:
		return m, m.logoutCmd()

	case tea.KeyCtrlN:
		return m, m.createSessionCmd(strings.TrimSpace(m.Input.Value()))

	case tea.KeyCtrlX:
		if sess, ok := m.cursorSession(); ok {
			return m, m.deleteSessionCmd(sess.ID)
		}
		return m, nil

	case tea.KeyCtrlB:
		return m.bookmarkLatest()

	case tea.KeyTab:
		m = m.cycleFocus(1)
		return m, nil

	case tea.KeyShiftTab:
		m = m.cycleFocus(-1)
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		if m.focus == focusSessions {
			if msg.Type == tea.KeyUp && m.cursor > 0 {
				m.cursor--
			}
			if msg.Type == tea.KeyDown && m.cursor < len(m.store.Sessions())-1 {
				m.cursor++
			}
			return m, nil
		}

	case tea.KeyEnter:
		switch m.focus {
		case focusSessions:
			if sess, ok := m.cursorSession(); ok {
				return m, m.selectSessionCmd(sess.ID)
			}
			return m, nil
		case focusLocation:
			m.store.SetLocation(strings.TrimSpace(m.Location.Value()))
			m = m.cycleFocus(1) // back to the message input
			return m, nil
		default:
			return m.submitInput()
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.Input, cmd = m.Input.Update(msg)
	case focusLocation:
		m.Location, cmd = m.Location.Update(msg)
	default:
		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
		}
	}
	return m, cmd
}

// submitInput starts the send protocol for the typed message. The store
// enforces the location gate and the single-pending-send guard; when it
// rejects the send up front the typed text is handed back to the input.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.Input.Value())
	if text == "" {
		return m, nil
	}
	m.Input.SetValue("")
	m.err = nil
	if m.store.CurrentSessionID() == "" {
		// No conversation selected: seed a new session with this message.
		return m, m.createAndSendCmd(text)
	}
	return m, m.sendCmd(text)
}

// isSendPrecondition reports whether err is a send rejection that left the
// store untouched, meaning the typed message was never shown in the
// transcript and should return to the input.
func isSendPrecondition(err error) bool {
	return errors.Is(err, maru.ErrLocationRequired) ||
		errors.Is(err, maru.ErrValidation) ||
		errors.Is(err, maru.ErrNoSession) ||
		errors.Is(err, maru.ErrHistoryNotLoaded) ||
		errors.Is(err, maru.ErrSendInFlight)
}

// bookmarkLatest saves the most recent recommendation of the active
// session, reading name/url off the assistant message.
func (m Model) bookmarkLatest() (tea.Model, tea.Cmd) {
	msgs := m.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == maru.RoleAssistant && msgs[i].Place != nil {
			place := *msgs[i].Place
			m.status = fmt.Sprintf("즐겨찾기 저장: %s", place.Name)
			return m, m.bookmarkCmd(place)
		}
	}
	m.status = "저장할 추천이 없습니다"
	return m, nil
}

func (m Model) cycleFocus(dir int) Model {
	m.focus = focusArea((int(m.focus) + dir + 3) % 3)
	m.Input.Blur()
	m.Location.Blur()
	switch m.focus {
	case focusInput:
		m.Input.Focus()
	case focusLocation:
		m.Location.Focus()
	}
	return m
}

func (m Model) cursorSession() (maru.Session, bool) {
	sessions := m.store.Sessions()
	if m.cursor < 0 || m.cursor >= len(sessions) {
		return maru.Session{}, false
	}
	return sessions[m.cursor], true
}

// refresh rebuilds the transcript from the store's read-only views.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	atBottom := m.Viewport.AtBottom()
	m.Viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	mainWidth := msg.Width - sidebarWidth - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	// Location line, input line, status line, plus separators.
	vpHeight := msg.Height - 4
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(mainWidth, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = mainWidth
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = mainWidth - 4
	m.Location.Width = 20
	m.Viewport.SetContent(m.renderTranscript())
	m.Viewport.GotoBottom()
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "로딩 중..."
	}

	main := strings.Join([]string{
		m.Viewport.View(),
		m.locationLine(),
		m.Input.View(),
		m.statusLine(),
	}, "\n")

	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", main)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.style.Accent.Render("대화 목록"))
	b.WriteString("\n\n")

	sessions := m.store.Sessions()
	if len(sessions) == 0 {
		b.WriteString(m.style.Muted.Render("대화가 없습니다"))
		b.WriteString("\n")
	}
	active := m.store.CurrentSessionID()
	for i, sess := range sessions {
		marker := "  "
		if i == m.cursor && m.focus == focusSessions {
			marker = "> "
		}
		label := sess.Title
		if label == "" {
			label = richtext.Plain(sess.LastMessage)
		}
		if label == "" {
			label = "새 대화"
		}
		label = maru.Truncate(label, sidebarWidth-4)
		line := marker + label
		switch {
		case sess.ID == active:
			line = m.style.Selected.Render(line)
		case i == m.cursor && m.focus == focusSessions:
			line = m.style.Accent.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		if preview := richtext.Plain(sess.LastMessage); preview != "" {
			b.WriteString(m.style.Muted.Render("  " + maru.Truncate(preview, sidebarWidth-4)))
			b.WriteString("\n")
		}
		if !sess.LastDate.IsZero() {
			b.WriteString(m.style.Muted.Render("  " + sess.LastDate.Format("01-02 15:04")))
			b.WriteString("\n")
		}
	}

	return m.style.Sidebar.Width(sidebarWidth).Height(m.height - 1).Render(b.String())
}

func (m Model) renderTranscript() string {
	width := m.Viewport.Width
	active := m.store.CurrentSessionID()
	if active == "" {
		return m.style.Muted.Render("대화를 선택하거나 메시지를 입력해 새 대화를 시작하세요.")
	}
	if m.store.IsMessagesLoading() {
		return m.style.Muted.Render(m.spin.View() + " 대화 내용을 불러오는 중...")
	}

	var b strings.Builder
	for _, msg := range m.store.Messages() {
		switch msg.Role {
		case maru.RoleUser:
			line := m.style.UserMsg.Render("> ") + msg.Body
			switch msg.Status {
			case maru.StatusPending:
				line += m.style.Pending.Render(" ⋯")
			case maru.StatusFailed:
				line += m.style.Error.Render(" (전송 실패)")
			}
			b.WriteString(lipgloss.NewStyle().Width(width).Render(line))
			b.WriteString("\n")
			if msg.Image != "" {
				b.WriteString(m.style.Muted.Render("  [이미지 첨부]"))
				b.WriteString("\n")
			}
		case maru.RoleAssistant:
			b.WriteString(richtext.Render(msg.Body, width, m.theme))
			b.WriteString("\n")
			if msg.Place != nil {
				b.WriteString(m.style.Accent.Render("→ "+msg.Place.Name) +
					" " + m.style.Muted.Render(msg.Place.URL))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	if m.store.IsAwaitingReply(active) {
		b.WriteString(m.style.Pending.Render(m.spin.View() + " 답변을 기다리는 중..."))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) locationLine() string {
	label := m.style.Muted.Render("위치: ")
	if m.focus == focusLocation {
		return label + m.Location.View()
	}
	loc := m.store.Location()
	if loc == "" {
		return label + m.style.Error.Render("미설정 (tab으로 이동해 입력)")
	}
	return label + m.style.Success.Render(loc)
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.style.Error.Render(m.err.Error())
	}
	if m.status != "" {
		return m.style.Success.Render(m.status)
	}
	name := m.cfg.AccountName
	if name != "" {
		name += " · "
	}
	return m.style.Muted.Render(name + "enter 전송 · ctrl+n 새 대화 · ctrl+x 삭제 · ctrl+b 즐겨찾기 · ctrl+l 로그아웃")
}

func (m Model) listSessionsCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return opDoneMsg{err: store.ListSessions(context.Background())}
	}
}

func (m Model) selectSessionCmd(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return opDoneMsg{err: store.SelectSession(context.Background(), id)}
	}
}

func (m Model) createSessionCmd(seed string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		_, err := store.CreateSession(context.Background(), seed)
		return opDoneMsg{err: err}
	}
}

// createAndSendCmd seeds a new session with the typed message, then runs
// the send protocol on it.
func (m Model) createAndSendCmd(text string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if _, err := store.CreateSession(context.Background(), maru.Truncate(text, 30)); err != nil {
			return opDoneMsg{err: err, input: text}
		}
		return opDoneMsg{err: store.SendMessage(context.Background(), text, ""), input: text}
	}
}

func (m Model) deleteSessionCmd(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return opDoneMsg{err: store.DeleteSession(context.Background(), id)}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return opDoneMsg{err: store.SendMessage(context.Background(), text, ""), input: text}
	}
}

func (m Model) bookmarkCmd(place maru.Place) tea.Cmd {
	marks := m.marks
	return func() tea.Msg {
		if marks == nil {
			return opDoneMsg{}
		}
		return opDoneMsg{err: marks.AddBookmark(context.Background(), place.Name, place.URL)}
	}
}

// logoutCmd logs out and resets the store: the account-change contract.
func (m Model) logoutCmd() tea.Cmd {
	store := m.store
	auth := m.auth
	return func() tea.Msg {
		var err error
		if auth != nil {
			err = auth.Logout(context.Background())
		}
		// Cached sessions must not survive the account change even when
		// the logout call itself failed.
		store.Reset()
		return loggedOutMsg{err: err}
	}
}
