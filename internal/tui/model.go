package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/refresh"
	"github.com/ekoc/coinfolio/internal/services"
	"github.com/ekoc/coinfolio/internal/utils"
)

type viewMode int

const (
	modeList viewMode = iota
	modeSearch
	modeResults
	modeAmount
)

const maskedValue = "••••••"

// StateMsg carries a fresh tracker state into the view.
type StateMsg struct {
	State services.ViewState
}

// SearchResultsMsg carries the outcome of a coin search.
type SearchResultsMsg struct {
	Results []models.SearchCoin
	Err     error
}

type tickMsg time.Time

type Model struct {
	tracker *services.TrackerService
	state   services.ViewState

	mode         viewMode
	cursor       int
	results      []models.SearchCoin
	resultCursor int
	statusLine   string

	searchInput textinput.Model
	amountInput textinput.Model
	spinner     spinner.Model

	width  int
	height int
	quit   bool
}

func NewModel(tracker *services.TrackerService) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	search := textinput.New()
	search.Placeholder = "coin name or symbol"
	search.CharLimit = 64

	amount := textinput.New()
	amount.Placeholder = "amount"
	amount.CharLimit = 32

	return Model{
		tracker:     tracker,
		state:       tracker.State(),
		searchInput: search,
		amountInput: amount,
		spinner:     sp,
		width:       80,
		height:      24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		model, cmd, quit := m.handleKeyMsg(msg)
		if quit {
			model.quit = true
			return model, tea.Quit
		}
		return model, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StateMsg:
		m.state = msg.State
		if m.cursor >= len(m.state.Holdings) && m.cursor > 0 {
			m.cursor = len(m.state.Holdings) - 1
		}

	case SearchResultsMsg:
		if msg.Err != nil {
			m.statusLine = fmt.Sprintf("Search failed: %v", msg.Err)
			m.mode = modeList
		} else if len(msg.Results) == 0 {
			m.statusLine = "No matches"
			m.mode = modeList
		} else {
			m.results = msg.Results
			m.resultCursor = 0
			m.mode = modeResults
		}

	case tickMsg:
		// countdown and refresh state live outside the model
		m.state = m.tracker.State()
		cmds = append(cmds, tickCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeResults:
		return m.handleResultsKey(msg)
	case modeAmount:
		return m.handleAmountKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, nil, true

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.state.Holdings)-1 {
			m.cursor++
		}

	case "r":
		m.tracker.Refresh()
		m.statusLine = "Refreshing..."

	case "h":
		m.tracker.ToggleHidden()
		m.state = m.tracker.State()

	case "/", "a":
		m.mode = modeSearch
		m.searchInput.SetValue("")
		m.searchInput.Focus()
		m.statusLine = ""
		return m, textinput.Blink, false

	case "e", "enter":
		if holding, ok := m.selectedHolding(); ok {
			m.mode = modeAmount
			m.amountInput.SetValue(strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", holding.Amount), "0"), "."))
			m.amountInput.Focus()
			return m, textinput.Blink, false
		}

	case "d":
		if holding, ok := m.selectedHolding(); ok {
			m.tracker.RemoveFavorite(holding.ID)
			m.state = m.tracker.State()
			m.statusLine = fmt.Sprintf("Removed %s", holding.ID)
		}
	}
	return m, nil, false
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil, false

	case "enter":
		query := strings.TrimSpace(m.searchInput.Value())
		if query == "" {
			m.mode = modeList
			return m, nil, false
		}
		m.statusLine = "Searching..."
		return m, searchCmd(m.tracker, query), false
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd, false
}

func (m Model) handleResultsKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "esc":
		m.mode = modeList

	case "up", "k":
		if m.resultCursor > 0 {
			m.resultCursor--
		}

	case "down", "j":
		if m.resultCursor < len(m.results)-1 {
			m.resultCursor++
		}

	case "enter":
		coin := m.results[m.resultCursor]
		m.tracker.AddFavorite(coin)
		m.state = m.tracker.State()
		m.statusLine = fmt.Sprintf("Added %s", coin.Name)
		m.mode = modeList
	}
	return m, nil, false
}

func (m Model) handleAmountKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil, false

	case "enter":
		m.mode = modeList
		holding, ok := m.selectedHolding()
		if !ok {
			return m, nil, false
		}
		if amount, valid := utils.ParseFlexibleNumber(m.amountInput.Value()); valid {
			m.tracker.SetAmount(holding.ID, amount)
			m.state = m.tracker.State()
		} else {
			m.statusLine = "Amount unchanged: not a number"
		}
		return m, nil, false
	}

	var cmd tea.Cmd
	m.amountInput, cmd = m.amountInput.Update(msg)
	return m, cmd, false
}

func searchCmd(tracker *services.TrackerService, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := tracker.Search(query)
		return SearchResultsMsg{Results: results, Err: err}
	}
}

func (m Model) selectedHolding() (models.Holding, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Holdings) {
		return models.Holding{}, false
	}
	return m.state.Holdings[m.cursor], true
}

func (m Model) favoriteByID(id string) (models.Favorite, bool) {
	for _, favorite := range m.state.Favorites {
		if favorite.ID == id {
			return favorite, true
		}
	}
	return models.Favorite{}, false
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("💰 Coinfolio"))
	s.WriteString("\n\n")

	s.WriteString(m.renderSummary())
	s.WriteString("\n\n")

	switch m.mode {
	case modeSearch:
		s.WriteString("Search: " + m.searchInput.View())
		s.WriteString("\n")
	case modeResults:
		s.WriteString(m.renderResults())
	default:
		s.WriteString(m.renderHoldings())
	}
	s.WriteString("\n")

	if m.mode == modeAmount {
		s.WriteString("New amount: " + m.amountInput.View())
		s.WriteString("\n")
	}

	if m.statusLine != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
		s.WriteString(statusStyle.Render(m.statusLine))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.renderFooter())

	return s.String()
}

func (m Model) renderSummary() string {
	summaryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	total := "$" + utils.FormatGrouped(m.state.TotalUSD, 2)
	local := ""
	if m.state.Rate > 0 {
		local = fmt.Sprintf("  ₺%s", utils.FormatGrouped(m.state.TotalUSD*m.state.Rate, 2))
	}
	if m.state.HideBalances {
		total = maskedValue
		local = ""
	}

	delta := ""
	if !m.state.HideBalances && (m.state.DeltaAbs != 0 || m.state.DeltaPct != 0) {
		color := "82"
		if m.state.DeltaAbs < 0 {
			color = "196"
		}
		deltaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		delta = "  " + deltaStyle.Render(fmt.Sprintf("%s (%s) 24h",
			utils.FormatSigned(m.state.DeltaAbs, 2), utils.FormatPercent(m.state.DeltaPct)))
	}

	return summaryStyle.Render(fmt.Sprintf("Total: %s%s", total, local)) + delta
}

func (m Model) renderHoldings() string {
	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(m.width - 2)

	if len(m.state.Holdings) == 0 {
		return sectionStyle.Render("No coins tracked. Press '/' to search and add one.")
	}

	var rows strings.Builder
	rows.WriteString(fmt.Sprintf("  %-10s %-20s %14s %14s %16s\n",
		"SYMBOL", "NAME", "AMOUNT", "PRICE", "VALUE"))
	rows.WriteString(strings.Repeat("─", 80) + "\n")

	for i, holding := range m.state.Holdings {
		name := holding.ID
		symbol := holding.ID
		if favorite, ok := m.favoriteByID(holding.ID); ok {
			name = favorite.Name
			symbol = strings.ToUpper(favorite.Symbol)
		}

		price := m.state.Prices[holding.ID]
		amount := utils.FormatGrouped(holding.Amount, 4)
		value := "$" + utils.FormatGrouped(holding.Amount*price, 2)
		if m.state.HideBalances {
			amount = maskedValue
			value = maskedValue
		}

		marker := "  "
		if i == m.cursor && m.mode == modeList || i == m.cursor && m.mode == modeAmount {
			marker = "▸ "
		}

		line := fmt.Sprintf("%s%-10s %-20s %14s %14s %16s",
			marker, truncate(symbol, 10), truncate(name, 20),
			amount, utils.FormatUSDPrice(price), value)

		if i == m.cursor {
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(line)
		}
		rows.WriteString(line + "\n")
	}

	return sectionStyle.Render(strings.TrimRight(rows.String(), "\n"))
}

func (m Model) renderResults() string {
	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2)

	var rows strings.Builder
	rows.WriteString("Search results (enter to add, esc to cancel)\n")
	for i, coin := range m.results {
		marker := "  "
		if i == m.resultCursor {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%-10s %-30s rank %d",
			marker, truncate(strings.ToUpper(coin.Symbol), 10), truncate(coin.Name, 30), coin.MarketCapRank)
		if i == m.resultCursor {
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(line)
		}
		rows.WriteString(line + "\n")
	}

	return sectionStyle.Render(strings.TrimRight(rows.String(), "\n"))
}

func (m Model) renderFooter() string {
	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	status := ""
	switch m.state.RefreshState {
	case refresh.StateFetching:
		status = m.spinner.View() + " fetching prices"
	case refresh.StateFailed:
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("last refresh failed")
	default:
		if !m.state.LastUpdated.IsZero() {
			status = fmt.Sprintf("updated %s | next in %s",
				m.state.LastUpdated.Format("15:04:05"), m.state.Countdown)
		} else {
			status = "waiting for first refresh"
		}
	}

	help := "r refresh | / add | e amount | d remove | h hide | q quit"
	return footerStyle.Render(status + "\n" + help)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
