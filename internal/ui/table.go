package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Stats is what a running coordinator reports on /stats.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
	Clients int `json:"clients"`
}

func StatsView(server string, s Stats) string {
	idle := s.Clients - s.Members
	if idle < 0 {
		idle = 0
	}

	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{IconRoom + " Active rooms", strconv.Itoa(s.Rooms)},
		{IconPeer + " In a room", strconv.Itoa(s.Members)},
		{IconConnect + " Connections", strconv.Itoa(s.Clients)},
		{IconTime + " Not joined", strconv.Itoa(idle)},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(IconWeb+" "+server),
		tbl.Render(),
	)
}

func RenderStats(server string, s Stats) {
	fmt.Println(StatsView(server, s))
}

// ServerInfo is the banner printed when the coordinator starts.
type ServerInfo struct {
	Version         string
	Addr            string
	Codecs          []string
	AllowedOrigins  []string
	ChatInterval    time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerInfo) View() string {
	origins := "any"
	if len(s.AllowedOrigins) > 0 {
		origins = strings.Join(s.AllowedOrigins, ", ")
	}

	content := fmt.Sprintf("%s Signaling server %s\n\n%s Listening:  %s\n%s Codecs:     %s\n%s Origins:    %s\n%s Chat gap:   %s\n%s Drain:      %s",
		IconSuccess, MutedStyle.Render(s.Version),
		IconConnect, BoldStyle.Foreground(Primary).Render(websocketURL(s.Addr)),
		IconWeb, strings.Join(s.Codecs, ", "),
		IconPeer, MutedStyle.Render(origins),
		IconTime, s.ChatInterval,
		IconWarning, s.ShutdownTimeout,
	)
	return SuccessBoxStyle.Render(content)
}

func (s ServerInfo) Render() {
	fmt.Println(s.View())
}

func websocketURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + "/ws"
}
