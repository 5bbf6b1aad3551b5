// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/kitaplik/internal/book"
	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction represents the user's action in the selection UI.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user selected an item.
	ActionSelected
	// ActionSkipped indicates the user skipped the selection.
	ActionSkipped
	// ActionStopped indicates the user stopped processing entirely.
	ActionStopped
)

// SelectionResult holds the result of a TUI selection.
type SelectionResult struct {
	Action    SelectionAction
	Selection *book.Record
}

type recordItem struct {
	book.Record
}

func (i recordItem) Title() string {
	return headline(i.Record)
}

func (i recordItem) FilterValue() string {
	return i.Record.Title
}

func (i recordItem) Description() string {
	return i.Record.Description
}

func headline(r book.Record) string {
	if r.PublishYear != nil {
		return fmt.Sprintf("%s (%d)", r.Title, *r.PublishYear)
	}
	return r.Title
}

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	sourceStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	authorStyle   lipgloss.Style
	metadataStyle lipgloss.Style
	overviewStyle lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:   container,
		selected: selected,
		sourceStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		authorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		metadataStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		overviewStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")),
	}
}

type recordDelegate struct {
	styles itemStyles
}

func newDelegate() recordDelegate {
	return recordDelegate{styles: newItemStyles()}
}

func (d recordDelegate) Height() int                         { return 5 }
func (d recordDelegate) Spacing() int                        { return 1 }
func (d recordDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d recordDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	result, ok := item.(recordItem)
	if !ok {
		return
	}
	width := m.Width() - 4

	author := result.Author
	if author == "" {
		author = "Unknown author"
	}

	sourceLine := d.styles.sourceStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(string(result.Source))))
	metadataLine := d.styles.metadataStyle.Render(formatMetadata(result.Record, width))
	titleLine := d.styles.titleStyle.Render(truncate(headline(result.Record), width))
	authorLine := d.styles.authorStyle.Render(truncate(author, width))
	overviewLine := d.styles.overviewStyle.Render(truncate(result.Record.Description, width))

	content := lipgloss.JoinVertical(lipgloss.Left, sourceLine, metadataLine, titleLine, authorLine, overviewLine)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list        list.Model
	searchQuery string
	result      SelectionResult
}

func newModel(query string, records []book.Record) *model {
	listItems := make([]list.Item, len(records))
	for i, rec := range records {
		listItems[i] = recordItem{Record: rec}
	}

	l := list.New(listItems, newDelegate(), defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:        l,
		searchQuery: query,
		result: SelectionResult{
			Action: ActionNone,
		},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(recordItem); ok {
				rec := selected.Record
				m.result = SelectionResult{
					Action:    ActionSelected,
					Selection: &rec,
				}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(fmt.Sprintf("%d results for: %s", len(m.list.Items()), m.searchQuery))
	listView := m.list.View()
	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		skipButtonStyle.Render(" Skip "),
		lipgloss.NewStyle().Padding(0, 2).Render(""),
		stopButtonStyle.Render(" Quit "),
	)
	help := helpStyle.Render("Up/Down navigate | Enter select | s skip | q quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, listView, buttons, help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	skipButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("178")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	stopButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("161")).
			Foreground(lipgloss.Color("230")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// Select presents an interactive picker over the merged search results.
// An empty list is reported as skipped without starting the UI.
func Select(query string, records []book.Record) (SelectionResult, error) {
	if len(records) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	finalModel, err := runProgram(newModel(query, records))
	if err != nil {
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}

	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

// Pick runs Select and returns the chosen record. Anything other than a
// selection yields kerrors.ErrSelectionCancelled.
func Pick(query string, records []book.Record) (book.Record, error) {
	result, err := Select(query, records)
	if err != nil {
		return book.Record{}, err
	}
	if result.Action != ActionSelected || result.Selection == nil {
		return book.Record{}, kerrors.ErrSelectionCancelled
	}
	return *result.Selection, nil
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 || utf8.RuneCountInString(value) <= width {
		return value
	}
	runes := []rune(value)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// formatMetadata builds the line with ISBN, publisher, page count and language
func formatMetadata(r book.Record, availableWidth int) string {
	var parts []string

	if r.ISBN != "" {
		parts = append(parts, "ISBN "+r.ISBN)
	}
	if r.Publisher != "" {
		parts = append(parts, r.Publisher)
	}
	if r.PageCount != nil {
		parts = append(parts, fmt.Sprintf("%d pages", *r.PageCount))
	}
	if r.Language != "" {
		parts = append(parts, strings.ToUpper(r.Language))
	}
	if r.HasCover() {
		parts = append(parts, "cover")
	}

	if len(parts) == 0 {
		return "No metadata available"
	}

	return truncate(strings.Join(parts, " | "), availableWidth)
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
