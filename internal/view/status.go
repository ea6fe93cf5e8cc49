package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/six78/feature-negotiation/internal/config"
	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/pkg/cluster"
	"github.com/six78/feature-negotiation/pkg/features"
)

var (
	headerStyle          = lipgloss.NewStyle().Bold(true)
	enabledStyle         = lipgloss.NewStyle().Foreground(config.EnabledColor)
	disabledStyle        = lipgloss.NewStyle().Foreground(config.DisabledColor)
	foregroundShadeStyle = lipgloss.NewStyle().Foreground(config.ForegroundShadeColor)
	cellStyle            = lipgloss.NewStyle().PaddingRight(2)

	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00E676"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFEA00"))
	dangerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5722"))
)

// FeatureState is the single word shown for a feature.
func FeatureState(status features.FeatureStatus) string {
	switch {
	case status.Disabled:
		return "disabled"
	case status.Enabled:
		return "enabled"
	case status.Masked:
		return "masked"
	case status.Supported:
		return "supported"
	default:
		return "unknown"
	}
}

func renderFeatureState(status features.FeatureStatus) string {
	state := FeatureState(status)
	switch state {
	case "enabled":
		return enabledStyle.Render(state)
	case "disabled":
		return disabledStyle.Render(state)
	default:
		return foregroundShadeStyle.Render(state)
	}
}

func renderColumn(cells []string) string {
	rendered := make([]string, 0, len(cells))
	for _, cell := range cells {
		rendered = append(rendered, cellStyle.Render(cell))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

// RenderStatus renders a table of features with their state.
func RenderStatus(statuses []features.FeatureStatus) string {
	names := []string{headerStyle.Render("FEATURE")}
	states := []string{headerStyle.Render("STATE")}
	notes := []string{headerStyle.Render("NOTE")}

	for _, status := range statuses {
		names = append(names, status.Name)
		states = append(states, renderFeatureState(status))

		note := ""
		if status.Deprecated {
			note = foregroundShadeStyle.Render("deprecated")
		}
		notes = append(notes, note)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderColumn(names),
		renderColumn(states),
		renderColumn(notes),
	)
}

// RenderConnectionStatus renders a colored marker with the number of peers.
func RenderConnectionStatus(status transport.ConnectionStatus) string {
	marker := "●"
	if status.PeersCount > 3 {
		marker = okStyle.Render(marker)
	} else if status.PeersCount > 0 {
		marker = warnStyle.Render(marker)
	} else {
		marker = dangerStyle.Render(marker)
	}

	text := fmt.Sprintf(" Transport: %d peer(s)", status.PeersCount)

	return lipgloss.JoinHorizontal(lipgloss.Left, marker, text)
}

// RenderPeers renders the cluster peers and the features agreed with them.
func RenderPeers(peers []cluster.PeerInfo, now time.Time) string {
	if len(peers) == 0 {
		return foregroundShadeStyle.Render("no peers")
	}

	nodes := []string{headerStyle.Render("NODE")}
	seen := []string{headerStyle.Render("LAST SEEN")}
	counts := []string{headerStyle.Render("FEATURES")}

	for _, peer := range peers {
		node := peer.Node.String()
		if peer.Online {
			node = enabledStyle.Render(node)
		} else {
			node = foregroundShadeStyle.Render(node)
		}
		nodes = append(nodes, node)
		seen = append(seen, now.Sub(peer.LastSeen).Truncate(time.Second).String()+" ago")
		counts = append(counts, fmt.Sprintf("%d", len(peer.Features)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderColumn(nodes),
		renderColumn(seen),
		renderColumn(counts),
	)
}

// RenderReport renders the full node report.
func RenderReport(
	connection transport.ConnectionStatus,
	peers []cluster.PeerInfo,
	statuses []features.FeatureStatus,
	now time.Time,
) string {
	return strings.Join([]string{
		RenderConnectionStatus(connection),
		"",
		RenderPeers(peers, now),
		"",
		RenderStatus(statuses),
	}, "\n")
}
