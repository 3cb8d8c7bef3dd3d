package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// StageTable renders one row per subsystem with a mark for every stage it
// has reached, followed by a row for the system stage. Counts are shown once
// a subsystem is at Model.
func StageTable(v state.View, st Styles) string {
	var b strings.Builder

	head := fmt.Sprintf("%-2s %-14s", "#", "subsystem")
	for _, g := range stage.All()[1:] {
		head += " " + g.String()[:3]
	}
	head += fmt.Sprintf(" %3s %3s %3s %3s %3s", "nq", "nu", "nz", "dv", "ce")
	b.WriteString(st.Header.Render(head))
	b.WriteByte('\n')

	for i := 0; i < v.NumSubsystems(); i++ {
		at := v.SubsystemStage(i)
		b.WriteString(st.Label.Render(fmt.Sprintf("%-2d ", i)))
		b.WriteString(st.Value.Render(fmt.Sprintf("%-14s", clip(v.SubsystemName(i), 14))))
		b.WriteString(marks(at, st))

		counts := []string{"-", "-", "-"}
		if at >= stage.Model {
			counts = []string{itoa(v.NQOf(i)), itoa(v.NUOf(i)), itoa(v.NZOf(i))}
		}
		counts = append(counts, itoa(v.NumDiscreteVariables(i)), itoa(v.NumCacheEntries(i)))
		for _, c := range counts {
			b.WriteString(st.Label.Render(fmt.Sprintf(" %3s", c)))
		}
		b.WriteByte('\n')
	}

	b.WriteString(st.Label.Render(fmt.Sprintf("%-2s ", "")))
	b.WriteString(st.Title.Render(fmt.Sprintf("%-14s", "system")))
	b.WriteString(marks(v.SystemStage(), st))
	b.WriteByte('\n')
	return b.String()
}

func marks(at stage.Stage, st Styles) string {
	var b strings.Builder
	for _, g := range stage.All()[1:] {
		if at >= g {
			b.WriteString(st.Reached.Render("   ●"))
		} else {
			b.WriteString(st.Pending.Render("   ·"))
		}
	}
	return b.String()
}

// StateDump renders the variables and cache of v in a panel.
func StateDump(v state.View, st Styles) string {
	body := strings.TrimRight(v.String(), "\n")
	cache := strings.TrimRight(v.CacheString(), "\n")
	if cache != "" {
		body += "\n\n" + st.Title.Render("cache") + "\n" + cache
	}
	return st.Panel.Render(body)
}

// Scene draws the decorations the system produces at Position onto a
// w x h canvas. v must be realized to at least Position.
func Scene(sys *system.System, v state.View, w, h int) (*Canvas, error) {
	geom, err := sys.Decorations(v, stage.Position)
	if err != nil {
		return nil, err
	}
	c := NewCanvas(w, h)
	c.DrawDecorations(Fit(c, Extent(geom)*1.1), geom)
	return c, nil
}

func itoa(n int) string { return fmt.Sprint(n) }

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
