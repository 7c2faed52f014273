package dashboard

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// createValues holds the create form's field bindings.
type createValues struct {
	Name    string
	Image   string
	Ports   string // host:container, e.g. 8080:80
	Env     string // comma-separated KEY=VALUE pairs
	Volumes string // comma-separated bind specs
	Command string
}

// startCreateForm builds a fresh create form. Image suggestions come from
// the local image list loaded asynchronously.
func (m *Model) startCreateForm() {
	vals := &createValues{}

	m.createVals = vals
	m.createForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("container name").
				Value(&vals.Name).
				Validate(requiredField("name")),
			huh.NewInput().
				Title("Image").
				Description("e.g. nginx:latest").
				Value(&vals.Image).
				SuggestionsFunc(func() []string { return m.images }, &m.images).
				Validate(requiredField("image")),
			huh.NewInput().
				Title("Port").
				Description("host:container, blank for none").
				Value(&vals.Ports).
				Validate(validatePortSpec),
			huh.NewInput().
				Title("Environment").
				Description("KEY=VALUE, comma separated").
				Value(&vals.Env),
			huh.NewInput().
				Title("Volumes").
				Description("/host:/container, comma separated").
				Value(&vals.Volumes),
			huh.NewInput().
				Title("Command").
				Description("override entrypoint args, blank for image default").
				Value(&vals.Command),
		),
	).WithShowHelp(false).WithWidth(60)
}

// submitCreate converts the completed form into a create command and returns
// to the list.
func (m Model) submitCreate() (tea.Model, tea.Cmd) {
	vals := m.createVals
	m.createForm = nil
	m.createVals = nil
	m.store.Apply(engine.SetMode{Mode: engine.ModeList})
	if vals == nil {
		return m, nil
	}

	spec := runtime.CreateSpec{
		Name:  strings.TrimSpace(vals.Name),
		Image: strings.TrimSpace(vals.Image),
	}
	if hostPort, containerPort, ok := parsePortSpec(vals.Ports); ok {
		spec.HostPort = hostPort
		spec.ContainerPort = containerPort
	}
	spec.Env = splitList(vals.Env)
	spec.Volumes = splitList(vals.Volumes)
	if cmd := strings.TrimSpace(vals.Command); cmd != "" {
		spec.Command = strings.Fields(cmd)
	}

	return m, m.createCmd(spec)
}

func requiredField(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return errRequired(name)
		}
		return nil
	}
}

type errRequired string

func (e errRequired) Error() string { return string(e) + " is required" }

// validatePortSpec accepts blank or host:container with both sides numeric.
func validatePortSpec(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	if _, _, ok := parsePortSpec(v); !ok {
		return errBadPort{}
	}
	return nil
}

type errBadPort struct{}

func (errBadPort) Error() string { return "use host:container, e.g. 8080:80" }

func parsePortSpec(v string) (uint16, uint16, bool) {
	v = strings.TrimSpace(v)
	host, container, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, false
	}
	hp, err := strconv.ParseUint(strings.TrimSpace(host), 10, 16)
	if err != nil {
		return 0, 0, false
	}
	cp, err := strconv.ParseUint(strings.TrimSpace(container), 10, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(hp), uint16(cp), true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
