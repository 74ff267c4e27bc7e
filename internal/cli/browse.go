package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/graphmem/graphmem/pkg/memory"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

func newBrowseCmd(configPath *string) *cobra.Command {
	var (
		scopeStr string
		nodeType string
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse nodes interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScopeFlag(scopeStr)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *configPath, func(a *app) error {
				nodes, err := a.store.List(cmd.Context(), memory.ListOptions{
					Scope: scope,
					Type:  nodeType,
				})
				if err != nil {
					return err
				}
				if len(nodes) == 0 {
					printInfo("No nodes to browse")
					return nil
				}

				model := newNodeListModel(nodes)
				final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
				if err != nil {
					return err
				}
				if m, ok := final.(nodeListModel); ok && m.Selected != nil {
					return printNode(*m.Selected, false)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scopeStr, "scope", "s", "", "restrict to one scope")
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "restrict to one node type")
	return cmd
}

// nodeListModel is the bubbletea model for interactive node selection.
type nodeListModel struct {
	Nodes    []memory.GraphNode
	Cursor   int
	Selected *memory.GraphNode
	Height   int
	Offset   int
}

func newNodeListModel(nodes []memory.GraphNode) nodeListModel {
	return nodeListModel{Nodes: nodes, Height: 15}
}

func (m nodeListModel) Init() tea.Cmd {
	return nil
}

func (m nodeListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Nodes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			node := m.Nodes[m.Cursor]
			m.Selected = &node
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m nodeListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Browse Memory Nodes"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Nodes))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		n := m.Nodes[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		attrs := "—"
		if len(n.Attributes) > 0 {
			attrs = fmt.Sprintf("%d attr(s)", len(n.Attributes))
		}

		rows = append(rows, []string{
			cursor, n.ID, n.Type, string(n.Scope),
			fmt.Sprintf("v%d", n.Version),
			formatRelativeTime(n.UpdatedAt),
			attrs,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Type", "Scope", "Ver", "Updated", "Attributes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if scopeCol := 3; col == scopeCol {
				actual := m.Offset + row
				if actual < len(m.Nodes) {
					if s, ok := styleScope[string(m.Nodes[actual].Scope)]; ok {
						return s
					}
				}
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Nodes))))

	return b.String()
}

func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
