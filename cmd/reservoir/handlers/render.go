package handlers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/reservoir/internal/inventory"
	"github.com/imamik/reservoir/internal/network"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
)

// renderSummary lists the hosts per role and the networks of doc.
func renderSummary(doc *inventory.Document, styled bool) string {
	render := func(st lipgloss.Style, s string) string {
		if !styled {
			return s
		}
		return st.Render(s)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(render(titleStyle, "  reservoir: "+doc.Name))
	b.WriteString("\n")
	b.WriteString(render(dimStyle, "  "+strings.Repeat("═", 30)))
	b.WriteString("\n")

	for _, role := range sortedRoles(doc) {
		b.WriteString("\n")
		b.WriteString(render(sectionStyle, fmt.Sprintf("  %s (%d)", role, len(doc.Roles[role]))))
		b.WriteString("\n")
		for _, e := range doc.Roles[role] {
			status := string(e.Status)
			switch e.Status {
			case network.StatusDeployed:
				status = render(okStyle, status)
			case network.StatusUndeployed:
				status = render(warnStyle, status)
			}
			fmt.Fprintf(&b, "    %-40s %-16s %s\n", e.Alias, e.Address, status)
		}
	}

	if len(doc.Networks) > 0 {
		b.WriteString("\n")
		b.WriteString(render(sectionStyle, "  Networks"))
		b.WriteString("\n")
		for _, role := range sortedNetworkRoles(doc) {
			for _, r := range doc.Networks[role] {
				fmt.Fprintf(&b, "    %-16s %-12s %-8s %s\n", role, r.Kind, r.Site, strings.Join(r.CIDRs, ","))
			}
		}
	}

	if undeployed := countUndeployed(doc); undeployed > 0 {
		b.WriteString("\n")
		b.WriteString(render(warnStyle, fmt.Sprintf("  %d host(s) could not be deployed", undeployed)))
		b.WriteString("\n")
	}
	return b.String()
}

func sortedRoles(doc *inventory.Document) []string {
	return sortedKeys(doc.Roles)
}

func sortedNetworkRoles(doc *inventory.Document) []string {
	return sortedKeys(doc.Networks)
}

func countUndeployed(doc *inventory.Document) int {
	seen := map[string]bool{}
	for _, entries := range doc.Roles {
		for _, e := range entries {
			if e.Status == network.StatusUndeployed {
				seen[e.Alias] = true
			}
		}
	}
	return len(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
