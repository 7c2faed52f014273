package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"

	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// render assembles the full frame for the current mode.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.store.Mode() {
	case engine.ModeLogs:
		b.WriteString(m.renderLogs())
	case engine.ModeExec:
		b.WriteString(m.renderExec())
	case engine.ModeHelp:
		b.WriteString(m.renderHelp())
	case engine.ModeConfirm:
		b.WriteString(m.renderConfirm())
	case engine.ModeCreate:
		b.WriteString(m.renderCreate())
	case engine.ModeProcesses:
		b.WriteString(m.renderProcesses())
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the title, the daemon banner when unreachable, and the
// host gauges.
func (m Model) renderHeader() string {
	var b strings.Builder

	title := TitleStyle.Render("backplane")
	counts := m.renderCounts()
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(counts)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(title + strings.Repeat(" ", gap) + counts + "\n")

	if err := m.store.DaemonErr(); err != "" {
		b.WriteString(BannerStyle.Render("daemon unreachable: "+firstLine(err)) + "\n")
	}

	b.WriteString(m.renderHostLine())
	return b.String()
}

func (m Model) renderCounts() string {
	running, total := 0, 0
	for _, r := range m.store.Containers() {
		if r.Tombstoned() {
			continue
		}
		total++
		if r.Running() {
			running++
		}
	}
	return LabelStyle.Render(fmt.Sprintf("%d/%d running", running, total))
}

// renderHostLine draws CPU, memory, disk, and GPU gauges for the host.
func (m Model) renderHostLine() string {
	host := m.store.Host()
	if host == nil {
		if err := m.store.HostErr(); err != "" {
			return LabelStyle.Render("host metrics unavailable: " + firstLine(err))
		}
		return LabelStyle.Render("sampling host…")
	}

	gaugeWidth := 10
	parts := []string{
		fmt.Sprintf("%s %s %3.0f%%", LabelStyle.Render("cpu"), renderGauge(host.CPUPercent, gaugeWidth), host.CPUPercent),
		fmt.Sprintf("%s %s %s/%s", LabelStyle.Render("mem"), renderGauge(host.MemoryPercent, gaugeWidth),
			units.BytesSize(float64(host.MemoryUsed)), units.BytesSize(float64(host.MemoryTotal))),
		fmt.Sprintf("%s %s %s/%s", LabelStyle.Render("disk"), renderGauge(host.DiskPercent, gaugeWidth),
			units.BytesSize(float64(host.DiskUsed)), units.BytesSize(float64(host.DiskTotal))),
	}
	if host.GPU != nil {
		parts = append(parts, fmt.Sprintf("%s %s %3.0f%%",
			LabelStyle.Render("gpu"), renderGauge(host.GPU.Percent, gaugeWidth), host.GPU.Percent))
	}
	line := strings.Join(parts, "   ")
	if m.store.HostErr() != "" {
		line += "  " + StatusErrStyle.Render("(stale)")
	}
	return line
}

// renderList draws the container table for the active column set.
func (m Model) renderList() string {
	var b strings.Builder

	if m.filtering {
		b.WriteString(m.filterInput.View() + "\n")
	} else if f := m.store.Filter(); f != "" {
		b.WriteString(LabelStyle.Render("filter: "+f+"  (esc to clear)") + "\n")
	}
	if m.renaming {
		b.WriteString(m.renameInput.View() + "\n")
	}
	if sf := m.store.StatusFilterValue(); sf != engine.FilterAll {
		b.WriteString(LabelStyle.Render("showing: "+sf.String()) + "\n")
	}

	visible := m.store.Visible()
	if len(visible) == 0 {
		b.WriteString("\n" + LabelStyle.Render("  no containers") + "\n")
		return b.String()
	}

	b.WriteString(HeaderRowStyle.Render(m.rowFor(nil, false)) + "\n")
	selected := m.store.SelectedID()
	for _, r := range visible {
		row := m.rowFor(r, r.ID == selected)
		switch {
		case r.ID == selected:
			b.WriteString(SelectedRowStyle.Render(row))
		case r.Tombstoned():
			b.WriteString(TombstoneStyle.Render(row))
		default:
			b.WriteString(row)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// rowFor formats one table row, or the header row when r is nil. Columns
// depend on the active column set; widths are fixed so rows align without a
// table widget.
func (m Model) rowFor(r *engine.ContainerRecord, selected bool) string {
	name := "NAME"
	state := "STATE"
	if r != nil {
		name = r.Name
		state = r.State
		if r.Tombstoned() {
			state = "removed"
		}
	}

	switch m.store.Columns() {
	case engine.ColumnsNetwork:
		rx, tx, rxRate, txRate := "RX", "TX", "RX/s", "TX/s"
		if r != nil {
			rx, tx, rxRate, txRate = "-", "-", "-", "-"
			if r.Stats != nil {
				rx = units.BytesSize(float64(r.Stats.RxBytes))
				tx = units.BytesSize(float64(r.Stats.TxBytes))
				rxRate = units.BytesSize(r.Stats.RxRate) + "/s"
				txRate = units.BytesSize(r.Stats.TxRate) + "/s"
			}
		}
		return fmt.Sprintf(" %-28s %-10s %12s %12s %10s %10s",
			truncate(name, 28), m.stateCell(r, state, selected), rxRate, txRate, rx, tx)

	case engine.ColumnsDetails:
		image, status, ports, created := "IMAGE", "STATUS", "PORTS", "CREATED"
		if r != nil {
			image = truncate(r.Image, 24)
			status = truncate(r.Status, 20)
			ports = formatPorts(r.Ports)
			created = units.HumanDuration(time.Since(r.Created)) + " ago"
		}
		return fmt.Sprintf(" %-28s %-10s %-24s %-20s %-18s %s",
			truncate(name, 28), m.stateCell(r, state, selected), image, status, truncate(ports, 18), created)

	default: // ColumnsStats
		cpu, mem, memPct := "CPU%", "MEM", "MEM%"
		if r != nil {
			cpu, mem, memPct = "-", "-", "-"
			if r.StatsErr != "" {
				cpu = "n/a"
			} else if r.Stats != nil {
				cpu = fmt.Sprintf("%.1f", r.Stats.CPUPercent)
				mem = units.BytesSize(float64(r.Stats.MemoryUsed)) + "/" + units.BytesSize(float64(r.Stats.MemoryLimit))
				memPct = fmt.Sprintf("%.1f", r.Stats.MemoryPercent)
			}
		}
		return fmt.Sprintf(" %-28s %-10s %8s %20s %8s",
			truncate(name, 28), m.stateCell(r, state, selected), cpu, mem, memPct)
	}
}

// stateCell colors the state word unless the row carries its own style.
func (m Model) stateCell(r *engine.ContainerRecord, state string, selected bool) string {
	padded := fmt.Sprintf("%-10s", state)
	if r == nil || selected || r.Tombstoned() {
		return padded
	}
	return stateStyle(r.State).Render(padded)
}

func (m Model) renderLogs() string {
	sess := m.store.Session()
	title := TitleStyle.Render("logs: " + sess.ContainerName)
	follow := ""
	if !m.followLogs {
		follow = LabelStyle.Render("  (scrolled; G to follow)")
	}
	if !m.viewportReady {
		return title + follow + "\n" + joinLines(m.store.LogLines(), m.width)
	}
	return title + follow + "\n" + m.logViewport.View()
}

func (m Model) renderExec() string {
	sess := m.store.Session()
	shell := m.sessions.ExecShell()
	title := TitleStyle.Render("shell: "+sess.ContainerName) +
		LabelStyle.Render("  "+shell+"  (ctrl+q to detach)")
	return title + "\n" + string(m.store.ExecBytes())
}

func (m Model) renderConfirm() string {
	pending := m.store.Pending()
	if pending == nil {
		return m.renderList()
	}
	prompt := fmt.Sprintf("%s container %q?", pending.Op, pending.ContainerName)
	modal := ModalStyle.Render(prompt + "\n\n" + LabelStyle.Render("y confirm   n cancel"))
	return lipgloss.Place(m.width, modalHeight(m.height), lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) renderCreate() string {
	if m.createForm == nil {
		return ""
	}
	return TitleStyle.Render("create container") + "\n" + m.createForm.View()
}

func (m Model) renderProcesses() string {
	procs := m.store.Processes()
	if procs == nil {
		return m.renderList()
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("processes: "+procs.ContainerName) + "\n\n")
	b.WriteString(HeaderRowStyle.Render(" "+processRow(procs.List.Titles)) + "\n")
	for _, p := range procs.List.Processes {
		b.WriteString(" " + processRow(p) + "\n")
	}
	b.WriteString("\n" + LabelStyle.Render("  press any key to close"))
	return b.String()
}

// processRow pads all cells but the last, which is usually the command and
// can run long.
func processRow(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		if i == len(cells)-1 {
			b.WriteString(c)
			break
		}
		b.WriteString(fmt.Sprintf("%-12s", truncate(c, 11)))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"↑/k ↓/j", "move selection"},
		{"g/home G/end", "jump to first/last"},
		{"enter", "follow logs"},
		{"e", "open shell"},
		{"s", "start"},
		{"x", "stop (confirms)"},
		{"r", "restart"},
		{"p / P", "pause / unpause"},
		{"d", "remove (confirms)"},
		{"R", "rename"},
		{"t", "processes"},
		{"c", "create container"},
		{"/", "filter by name"},
		{"f", "cycle all/running/stopped"},
		{"tab", "cycle columns"},
		{"ctrl+q", "detach from shell"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("keys") + "\n\n")
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			ValueStyle.Render(fmt.Sprintf("%-14s", row[0])), LabelStyle.Render(row[1])))
	}
	b.WriteString("\n" + LabelStyle.Render("  press any key to close"))
	return b.String()
}

// renderFooter shows the transient status when present, otherwise the key
// hints for the current mode.
func (m Model) renderFooter() string {
	if st := m.store.Status(); st != nil {
		if st.IsError {
			return FooterStyle.Render(StatusErrStyle.Render("✗ " + firstLine(st.Text)))
		}
		return FooterStyle.Render(StatusOKStyle.Render("✓ " + st.Text))
	}

	switch m.store.Mode() {
	case engine.ModeLogs:
		return FooterStyle.Render("esc back · ↑/↓ scroll · G follow")
	case engine.ModeExec:
		return FooterStyle.Render("ctrl+q detach")
	case engine.ModeCreate:
		return FooterStyle.Render("esc cancel")
	case engine.ModeConfirm:
		return FooterStyle.Render("y confirm · n cancel")
	case engine.ModeProcesses, engine.ModeHelp:
		return FooterStyle.Render("any key to close")
	default:
		return FooterStyle.Render("enter logs · e shell · s/x/r lifecycle · c create · / filter · ? help · q quit")
	}
}

func formatPorts(ports []runtime.PortMapping) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.HostPort != 0 {
			parts = append(parts, fmt.Sprintf("%d→%d/%s", p.HostPort, p.ContainerPort, p.Protocol))
		} else {
			parts = append(parts, fmt.Sprintf("%d/%s", p.ContainerPort, p.Protocol))
		}
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func joinLines(lines []string, width int) string {
	return strings.Join(lines, "\n")
}

func modalHeight(h int) int {
	if h < 7 {
		return 7
	}
	return h - 8
}
