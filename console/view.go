package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/commandpost/dispatch-core/models"
)

const (
	mapWidth  = 48
	mapHeight = 12
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	paneStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	routineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	bannerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func priorityStyle(p models.Priority) lipgloss.Style {
	switch p {
	case models.PriorityCritical:
		return criticalStyle
	case models.PriorityHigh:
		return highStyle
	default:
		return routineStyle
	}
}

// View implements tea.Model.
func (m Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		paneStyle.Render(m.callQueueView()),
		paneStyle.Render(m.unitBoardView()),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		paneStyle.Render(m.detailsView()),
		paneStyle.Render(m.timelineView()),
	)
	top := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	sections := []string{
		titleStyle.Render("dispatch console"),
		top,
		paneStyle.Render(m.mapView()),
		m.statusBar(),
	}
	if m.assignMode {
		sections = append(sections, paneStyle.Render(m.assignView()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// callQueueView renders calls in arrival order. Priority changes only
// the styling; the list never reorders on its own, so a dispatcher's
// eyes stay where they were.
func (m Model) callQueueView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("call queue") + "\n")
	if len(m.snap.Calls) == 0 {
		b.WriteString(dimStyle.Render("no active calls"))
		return b.String()
	}
	for i, c := range m.snap.Calls {
		line := fmt.Sprintf("%-8s %-9s %-10s %s",
			shortID(c.ID), c.Details.Priority, c.Details.Status, c.Details.Address)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + priorityStyle(c.Details.Priority).Render(line))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) unitBoardView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("units") + "\n")
	if len(m.snap.Units) == 0 {
		b.WriteString(dimStyle.Render("no units on shift"))
		return b.String()
	}
	for _, u := range m.snap.Units {
		line := fmt.Sprintf("%-8s %-14s", u.ID, u.Details.Status)
		if u.Details.ActiveCall != "" {
			line += " on " + shortID(u.Details.ActiveCall)
		}
		if u.Details.Status == models.UnitAvailable {
			b.WriteString(routineStyle.Render(line))
		} else {
			b.WriteString(dimStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) detailsView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("details") + "\n")
	call, ok := m.selectedCall()
	if !ok {
		b.WriteString(dimStyle.Render("select a call"))
		return b.String()
	}
	d := call.Details
	b.WriteString(fmt.Sprintf("call     %s\n", call.ID))
	b.WriteString(fmt.Sprintf("caller   %s  %s\n", d.CallerName, d.CallerPhone))
	b.WriteString(fmt.Sprintf("address  %s\n", d.Address))
	b.WriteString(fmt.Sprintf("priority %s\n", priorityStyle(d.Priority).Render(string(d.Priority))))
	b.WriteString(fmt.Sprintf("status   %s\n", d.Status))
	if d.ETAMinutes != nil {
		b.WriteString(fmt.Sprintf("eta      %d min\n", *d.ETAMinutes))
	}
	if len(d.AssignedUnits) > 0 {
		b.WriteString("units    " + strings.Join(d.AssignedUnits, ", ") + "\n")
	} else {
		b.WriteString(dimStyle.Render("units    none assigned") + "\n")
	}
	next := models.NextStatuses(d.Status)
	if len(next) > 0 {
		names := make([]string, len(next))
		for i, s := range next {
			names[i] = string(s)
		}
		b.WriteString(dimStyle.Render("next     "+strings.Join(names, ", ")) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) timelineView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("timeline") + "\n")
	if m.selectedCallID() == "" {
		b.WriteString(dimStyle.Render("select a call to see its history"))
		return b.String()
	}
	if len(m.timeline) == 0 {
		b.WriteString(dimStyle.Render("no recorded actions"))
		return b.String()
	}
	max := len(m.timeline)
	if max > 8 {
		max = 8
	}
	for _, e := range m.timeline[:max] {
		d := e.Details
		line := fmt.Sprintf("%s  %s", d.CreatedAt.Format("15:04:05"), d.Action)
		if from, ok := d.Metadata["from"]; ok {
			line += fmt.Sprintf("  %s -> %s", from, d.Metadata["to"])
		} else if unit, ok := d.Metadata["unit"]; ok {
			line += "  " + unit
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) assignView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("assign unit") + "  " + dimStyle.Render("enter confirms, esc cancels") + "\n")
	available := m.availableUnits()
	if len(available) == 0 {
		b.WriteString(dimStyle.Render("no units available"))
		return b.String()
	}
	for i, u := range available {
		line := fmt.Sprintf("%-8s", u.ID)
		if i == m.unitSel {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// mapView plots calls and units on a character grid scaled to the
// bounding box of everything with coordinates. Crude, but it gives the
// dispatcher spatial context without a tile server.
func (m Model) mapView() string {
	grid := make([][]rune, mapHeight)
	for y := range grid {
		grid[y] = make([]rune, mapWidth)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}

	minLat, maxLat, minLon, maxLon, any := m.bounds()
	if !any {
		return titleStyle.Render("map") + "\n" + dimStyle.Render("no positions reported")
	}

	plot := func(lat, lon float64, marker rune) (int, int) {
		x, y := project(lat, lon, minLat, maxLat, minLon, maxLon)
		grid[y][x] = marker
		return x, y
	}

	for _, u := range m.snap.Units {
		if u.Details.Lat != 0 || u.Details.Lon != 0 {
			plot(u.Details.Lat, u.Details.Lon, 'U')
		}
	}
	selX, selY := -1, -1
	for i, c := range m.snap.Calls {
		if c.Details.Lat == 0 && c.Details.Lon == 0 {
			continue
		}
		x, y := plot(c.Details.Lat, c.Details.Lon, 'C')
		if i == m.selected {
			selX, selY = x, y
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("map") + "\n")
	for y, row := range grid {
		for x, r := range row {
			if x == selX && y == selY {
				b.WriteString(selectedStyle.Render(string(r)))
			} else if r == '.' {
				b.WriteString(dimStyle.Render("."))
			} else {
				b.WriteString(string(r))
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) bounds() (minLat, maxLat, minLon, maxLon float64, any bool) {
	consider := func(lat, lon float64) {
		if lat == 0 && lon == 0 {
			return
		}
		if !any {
			minLat, maxLat, minLon, maxLon = lat, lat, lon, lon
			any = true
			return
		}
		if lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
		if lon < minLon {
			minLon = lon
		}
		if lon > maxLon {
			maxLon = lon
		}
	}
	for _, c := range m.snap.Calls {
		consider(c.Details.Lat, c.Details.Lon)
	}
	for _, u := range m.snap.Units {
		consider(u.Details.Lat, u.Details.Lon)
	}
	return
}

func project(lat, lon, minLat, maxLat, minLon, maxLon float64) (x, y int) {
	spanLat := maxLat - minLat
	spanLon := maxLon - minLon
	x, y = mapWidth/2, mapHeight/2
	if spanLon > 0 {
		x = int((lon - minLon) / spanLon * float64(mapWidth-1))
	}
	if spanLat > 0 {
		// latitude grows north, terminal rows grow down
		y = int((maxLat - lat) / spanLat * float64(mapHeight-1))
	}
	return x, y
}

func (m Model) statusBar() string {
	parts := []string{
		fmt.Sprintf("calls: %d", len(m.snap.Calls)),
		fmt.Sprintf("units: %d", len(m.snap.Units)),
	}
	if m.queueDepth > 0 {
		parts = append(parts, bannerStyle.Render(fmt.Sprintf("offline queue: %d pending", m.queueDepth)))
	}
	if !m.snap.FetchedAt.IsZero() {
		parts = append(parts, dimStyle.Render("as of "+m.snap.FetchedAt.Format("15:04:05")))
	}
	if m.busy {
		parts = append(parts, m.spin.View()+" sending")
	}
	bar := strings.Join(parts, "  |  ")
	if m.banner != "" {
		bar += "\n" + bannerStyle.Render(m.banner)
	}
	bar += "\n" + helpStyle.Render("up/down select  a assign  1 enroute  2 onscene  3 transport  4 available  r refresh  q quit")
	return bar
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m Model) selectedCall() (models.Call, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Calls) {
		return models.Call{}, false
	}
	return m.snap.Calls[m.selected], true
}
