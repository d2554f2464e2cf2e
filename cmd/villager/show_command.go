package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"villager/internal/archive"
	"villager/internal/story"
)

type storyView struct {
	Name      string             `json:"name"`
	VillageID string             `json:"village_id,omitempty"`
	State     story.VillageState `json:"state"`
	GraveIcon string             `json:"grave_icon,omitempty"`
	Avatars   []avatarView       `json:"avatars"`
	Periods   []periodView       `json:"periods"`
}

type avatarView struct {
	story.Avatar
	Icon string     `json:"icon,omitempty"`
	Role story.Role `json:"role"`
}

type periodView struct {
	Day      int              `json:"day"`
	Kind     story.PeriodKind `json:"kind"`
	Count    int              `json:"element_count"`
	Elements []elementView    `json:"elements,omitempty"`
}

type elementView struct {
	Type string        `json:"type"`
	Data story.Element `json:"data"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var day int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <archive|package>",
		Short: "Print an archive or package",
		Long: `Show prints the village summary, its cast and its periods. With --day
the elements of that one period are listed instead; only that period is
loaded from a package.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			st, err := archive.Open(args[0], archive.WithLogger(logger))
			if err != nil {
				return err
			}

			selected := st.Periods
			if cmd.Flags().Changed("day") {
				p, ok := st.PeriodByDay(day)
				if !ok {
					return fmt.Errorf("no period for day %d", day)
				}
				if err := p.Ready(); err != nil {
					return fmt.Errorf("load day %d: %w", day, err)
				}
				selected = []*story.Period{p}
			} else if err := st.Prefetch(cmd.Context(), cfg.Archive.PrefetchWorkers); err != nil {
				return fmt.Errorf("load periods: %w", err)
			}

			view, err := buildStoryView(st, selected, cmd.Flags().Changed("day"))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, view)
			}
			if cmd.Flags().Changed("day") {
				printPeriod(cmd, st, selected[0])
				return nil
			}
			printStory(cmd, view)
			return nil
		},
	}

	cmd.Flags().IntVarP(&day, "day", "d", 0, "Show the elements of one period")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func buildStoryView(st *story.Story, periods []*story.Period, withElements bool) (storyView, error) {
	view := storyView{
		Name:      st.Name,
		VillageID: st.VillageID,
		State:     st.State,
		Avatars:   []avatarView{},
		Periods:   []periodView{},
	}
	if st.GraveIcon != nil {
		view.GraveIcon = st.GraveIcon.String()
	}
	for _, a := range st.Cast.Avatars() {
		view.Avatars = append(view.Avatars, avatarView{Avatar: a, Icon: a.IconURI(), Role: st.Cast.Role(a.ID)})
	}
	for _, p := range periods {
		elements, err := p.Elements()
		if err != nil {
			return storyView{}, fmt.Errorf("day %d: %w", p.Day, err)
		}
		pv := periodView{Day: p.Day, Kind: p.Kind, Count: len(elements)}
		if withElements {
			for _, e := range elements {
				pv.Elements = append(pv.Elements, elementView{Type: elementType(e), Data: e})
			}
		}
		view.Periods = append(view.Periods, pv)
	}
	return view, nil
}

func printStory(cmd *cobra.Command, view storyView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(view.Name, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Village ID: %s\n", view.VillageID)
	fmt.Fprintf(out, "State:      %s\n", view.State)
	fmt.Fprintln(out)

	avatarRows := make([][]string, 0, len(view.Avatars))
	for _, a := range view.Avatars {
		avatarRows = append(avatarRows, []string{string(a.ID), a.FullName, a.ShortName, a.Role.String()})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Short", "Role"}, avatarRows, nil))

	periodRows := make([][]string, 0, len(view.Periods))
	for _, p := range view.Periods {
		periodRows = append(periodRows, []string{strconv.Itoa(p.Day), p.Kind.String(), strconv.Itoa(p.Count)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Day", "Kind", "Elements"},
		periodRows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	))
}

func printPeriod(cmd *cobra.Command, st *story.Story, p *story.Period) {
	out := cmd.OutOrStdout()
	for _, line := range renderSectionHeader(fmt.Sprintf("%s: day %d (%s)", st.Name, p.Day, p.Kind), shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
	elements, _ := p.Elements()
	rows := make([][]string, 0, len(elements))
	for i, e := range elements {
		speaker, when := elementSource(st.Cast, e)
		rows = append(rows, []string{strconv.Itoa(i + 1), elementType(e), speaker, when, cellText(story.Text(e))})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Type", "Avatar", "Time", "Text"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func elementType(e story.Element) string {
	switch v := e.(type) {
	case *story.Talk:
		return "talk/" + v.Category.String()
	case *story.WolfAttack:
		return "assault"
	case *story.Event:
		return v.Kind.String()
	default:
		return "unknown"
	}
}

func elementSource(cast *story.Cast, e story.Element) (string, string) {
	switch v := e.(type) {
	case *story.Talk:
		return avatarName(cast, v.Speaker), v.Time.String()
	case *story.WolfAttack:
		return avatarName(cast, v.Speaker) + " -> " + avatarName(cast, v.Target), v.Time.String()
	case *story.Event:
		if len(v.Avatars) > 0 {
			return avatarName(cast, v.Avatars[0]), ""
		}
	}
	return "", ""
}

func avatarName(cast *story.Cast, id story.AvatarID) string {
	if id == "" {
		return "?"
	}
	if a, ok := cast.Lookup(id); ok && a.ShortName != "" {
		return a.ShortName
	}
	return string(id)
}
