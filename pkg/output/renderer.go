package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/kudato/fcosinstall/pkg/datastore"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/orchestrator"
)

// Report is one run as shown to the user.
type Report struct {
	SpecVersion string
	Device      string
	Templates   []string
	Check       bool
	Result      orchestrator.Result
}

// Record is the JSON form of a Report.
type Record struct {
	Changed            bool     `json:"changed"`
	Msg                string   `json:"msg"`
	Warnings           []string `json:"warnings"`
	Fingerprint        string   `json:"fingerprint,omitempty"`
	State              string   `json:"state,omitempty"`
	Failed             bool     `json:"failed,omitempty"`
	ManualIntervention bool     `json:"manual_intervention,omitempty"`
}

// NewRecord converts res.
func NewRecord(res orchestrator.Result) Record {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return Record{
		Changed:            res.Changed,
		Msg:                res.Msg,
		Warnings:           warnings,
		Fingerprint:        res.Fingerprint,
		State:              string(res.State),
		Failed:             res.State == orchestrator.StateFailed,
		ManualIntervention: res.ManualIntervention,
	}
}

// Renderer writes reports in one format.
type Renderer struct {
	w      io.Writer
	format Format
	styles Styles
	// Width wraps the markdown plan; zero lets glamour decide.
	Width  int
	logger zerolog.Logger
}

// NewRenderer creates a renderer for w. FormatAuto is resolved against w
// when it is a file and falls back to plain text otherwise.
func NewRenderer(w io.Writer, format Format, cfg StyleConfig) *Renderer {
	if format == FormatAuto {
		format = FormatText
		if f, ok := w.(*os.File); ok {
			format = DetectFormat(f)
		}
	}
	logger := logging.GetLogger("output")
	logger.Debug().Str("format", format.String()).Msg("Creating renderer")

	return &Renderer{
		w:      w,
		format: format,
		styles: cfg.Build(lipgloss.NewRenderer(w)),
		logger: logger,
	}
}

// Format is the resolved output format.
func (r *Renderer) Format() Format { return r.format }

// RenderReport writes the outcome of a run.
func (r *Renderer) RenderReport(rep Report) error {
	switch r.format {
	case FormatJSON:
		return r.writeJSON(NewRecord(rep.Result))
	case FormatTerminal:
		return r.write(r.terminalReport(rep))
	default:
		return r.write(r.textReport(rep))
	}
}

// RenderError writes a failure that happened before a run produced a
// result.
func (r *Renderer) RenderError(err error) error {
	stage := errors.Stage(err)
	switch r.format {
	case FormatJSON:
		return r.writeJSON(Record{
			Msg:                err.Error(),
			Warnings:           []string{},
			State:              string(orchestrator.StateFailed),
			Failed:             true,
			ManualIntervention: errors.RequiresManualIntervention(err),
		})
	case FormatTerminal:
		label := pterm.Error.Prefix.Style.Sprint(" " + pterm.Error.Prefix.Text + " ")
		head, rest := splitFirstLine(err.Error())
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", label, r.styles.Get("Error").Render(head))
		if stage != "" {
			fmt.Fprintf(&b, "%s\n", r.styles.Get("Muted").Render("stage: "+stage))
		}
		r.diagnostic(&b, rest)
		return r.write(b.String())
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "error: %s\n", err.Error())
		if stage != "" {
			fmt.Fprintf(&b, "stage: %s\n", stage)
		}
		return r.write(b.String())
	}
}

// RenderMarker writes the marker found at path, or its absence.
func (r *Renderer) RenderMarker(path string, m *datastore.Marker) error {
	if r.format == FormatJSON {
		return r.writeJSON(struct {
			Path      string            `json:"path"`
			Installed bool              `json:"installed"`
			Corrupt   bool              `json:"corrupt,omitempty"`
			Marker    *datastore.Marker `json:"marker,omitempty"`
		}{Path: path, Installed: m != nil, Corrupt: m != nil && m.Corrupt, Marker: m})
	}

	rows := markerRows(path, m)
	if r.format == FormatTerminal {
		data := pterm.TableData{}
		for _, row := range rows {
			data = append(data, []string{r.styles.Get("Key").Render(row[0]), row[1]})
		}
		table, err := pterm.DefaultTable.WithData(data).Srender()
		if err != nil {
			return err
		}
		return r.write(table + "\n")
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s: %s\n", row[0], row[1])
	}
	return r.write(b.String())
}

func markerRows(path string, m *datastore.Marker) [][2]string {
	rows := [][2]string{{"marker", path}}
	switch {
	case m == nil:
		rows = append(rows, [2]string{"installed", "no"})
	case m.Corrupt:
		rows = append(rows, [2]string{"installed", "yes (marker unreadable)"})
	default:
		rows = append(rows,
			[2]string{"installed", m.InstalledAt.Format("2006-01-02 15:04:05 MST")},
			[2]string{"device", m.Device},
			[2]string{"fingerprint", m.Fingerprint},
		)
		if m.SpecVersion != "" {
			rows = append(rows, [2]string{"spec", m.SpecVersion})
		}
		if len(m.Templates) > 0 {
			rows = append(rows, [2]string{"templates", strings.Join(m.Templates, ", ")})
		}
	}
	return rows
}

func (r *Renderer) textReport(rep Report) string {
	res := rep.Result
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", res.State, res.Msg)
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	if res.Fingerprint != "" {
		fmt.Fprintf(&b, "fingerprint: %s\n", res.Fingerprint)
	}
	if res.DocumentChecksum != "" {
		fmt.Fprintf(&b, "document: %s\n", res.DocumentChecksum)
	}
	if rep.Check && res.State == orchestrator.StateProceed {
		for i, t := range rep.Templates {
			fmt.Fprintf(&b, "template %d: %s\n", i+1, t)
		}
	}
	return b.String()
}

func (r *Renderer) terminalReport(rep Report) string {
	res := rep.Result
	var b strings.Builder

	head, rest := splitFirstLine(res.Msg)
	fmt.Fprintf(&b, "%s %s\n", stateBadge(res.State).Sprint(" "+strings.ToUpper(string(res.State))+" "), r.styles.Get(stateStyle(res.State)).Render(head))
	r.diagnostic(&b, rest)

	for _, w := range res.Warnings {
		label := pterm.Warning.Prefix.Style.Sprint(" " + pterm.Warning.Prefix.Text + " ")
		fmt.Fprintf(&b, "%s %s\n", label, r.styles.Get("Warning").Render(w))
	}

	if rep.Check && res.State == orchestrator.StateProceed {
		b.WriteString(r.markdown(planMarkdown(rep)))
		return b.String()
	}

	if res.Fingerprint != "" {
		fmt.Fprintf(&b, "%s %s\n", r.styles.Get("Key").Render("fingerprint"), r.styles.Get("Muted").Render(res.Fingerprint))
	}
	if res.DocumentChecksum != "" {
		fmt.Fprintf(&b, "%s %s\n", r.styles.Get("Key").Render("document"), r.styles.Get("Muted").Render(res.DocumentChecksum))
	}
	return b.String()
}

func (r *Renderer) diagnostic(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	style := r.styles.Get("Diagnostic")
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "%s\n", style.Render(line))
	}
}

func planMarkdown(rep Report) string {
	var b strings.Builder
	b.WriteString("## Install plan\n\n")
	fmt.Fprintf(&b, "- **device:** `%s`\n", rep.Device)
	fmt.Fprintf(&b, "- **butane spec:** `%s`\n", rep.SpecVersion)
	fmt.Fprintf(&b, "- **document:** `%s` (%d bytes)\n", rep.Result.DocumentChecksum, len(rep.Result.Document))
	fmt.Fprintf(&b, "- **fingerprint:** `%s`\n", rep.Result.Fingerprint)
	if len(rep.Templates) > 0 {
		b.WriteString("\n### Templates, in merge order\n\n")
		for i, t := range rep.Templates {
			fmt.Fprintf(&b, "%d. `%s`\n", i+1, t)
		}
	}
	return b.String()
}

// markdown renders md for the terminal, falling back to the source.
func (r *Renderer) markdown(md string) string {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if r.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(r.Width))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Markdown renderer unavailable")
		return md
	}
	out, err := tr.Render(md)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Markdown rendering failed")
		return md
	}
	return out
}

func stateBadge(s orchestrator.State) *pterm.Style {
	switch s {
	case orchestrator.StateDone:
		return pterm.NewStyle(pterm.BgGreen, pterm.FgBlack)
	case orchestrator.StateFailed:
		return pterm.NewStyle(pterm.BgRed, pterm.FgWhite, pterm.Bold)
	case orchestrator.StateProceed:
		return pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	default:
		return pterm.NewStyle(pterm.BgGray, pterm.FgWhite)
	}
}

func stateStyle(s orchestrator.State) string {
	switch s {
	case orchestrator.StateDone:
		return "Success"
	case orchestrator.StateFailed:
		return "Error"
	case orchestrator.StateProceed:
		return "Warning"
	default:
		return "Info"
	}
}

func splitFirstLine(s string) (string, string) {
	head, rest, _ := strings.Cut(s, "\n")
	return head, rest
}

func (r *Renderer) writeJSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (r *Renderer) write(s string) error {
	_, err := io.WriteString(r.w, s)
	return err
}
