package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stwalsh4118/repolens/internal/git"
)

var (
	colorMuted   = lipgloss.Color("241")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("160")
	colorAccent  = lipgloss.Color("75")

	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleAccent  = lipgloss.NewStyle().Foreground(colorAccent)

	styleBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	styleSection = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Underline(true)
)

// humanLimit caps long lists in the human rendering; JSON output is never truncated
const humanLimit = 10

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderStatus(w io.Writer, repo git.Repository, s git.StatusSnapshot) {
	if !s.IsRepo {
		fmt.Fprintf(w, "%s %s\n", styleWarning.Render("not a git repository:"), repo.Path)
		return
	}

	branch := s.CurrentBranch
	if branch == "" {
		branch = styleWarning.Render("(detached HEAD)")
	} else {
		branch = styleAccent.Render(branch)
	}

	state := styleSuccess.Render("clean")
	if s.HasConflicts {
		state = styleError.Render("conflicts")
	} else if s.IsDirty() {
		state = styleWarning.Render("dirty")
	}

	lines := []string{
		styleTitle.Render(repo.Name) + "  " + styleMuted.Render(repo.Path),
		fmt.Sprintf("Branch:      %s", branch),
		fmt.Sprintf("State:       %s (%d uncommitted)", state, s.UncommittedChangeCount),
		fmt.Sprintf("Unpushed:    %d", s.UnpushedCommitCount),
		fmt.Sprintf("Remote:      %s", yesNo(s.HasRemote)),
	}
	if s.LastCommitHash != "" {
		lines = append(lines, fmt.Sprintf("Last commit: %s %s", styleAccent.Render(shortHash(s.LastCommitHash)), firstLine(s.LastCommitMessage)))
	}
	fmt.Fprintln(w, styleBox.Render(strings.Join(lines, "\n")))
}

func renderChanges(w io.Writer, changes []git.FileChangeEntry) {
	if len(changes) == 0 {
		fmt.Fprintln(w, styleSuccess.Render("working tree clean"))
		return
	}
	for _, c := range changes {
		area := styleWarning.Render("unstaged")
		if c.Staged {
			area = styleSuccess.Render("staged  ")
		}
		fmt.Fprintf(w, "%s  %-9s  %s\n", area, c.ChangeKind, c.Path)
	}
}

func renderBranches(w io.Writer, branches []git.BranchInfo) {
	for _, b := range branches {
		marker := "  "
		name := b.Name
		if b.Current {
			marker = "* "
			name = styleAccent.Render(name)
		}
		line := marker + name
		if b.Upstream != "" {
			line += "  " + styleMuted.Render("-> "+b.Upstream)
		}
		fmt.Fprintln(w, line)
	}
}

func renderCommits(w io.Writer, commits []git.CommitMetadata) {
	if len(commits) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no commits"))
		return
	}
	for _, c := range commits {
		stats := styleSuccess.Render(fmt.Sprintf("+%d", c.Insertions)) + " " + styleError.Render(fmt.Sprintf("-%d", c.Deletions))
		line := fmt.Sprintf("%s %s %s  %s  %s",
			styleAccent.Render(shortHash(c.Hash)),
			styleMuted.Render(c.Timestamp.Format("2006-01-02")),
			c.Author.Name,
			firstLine(c.Message),
			stats,
		)
		if len(c.TaskReferences) > 0 {
			line += "  " + styleWarning.Render("#"+strings.Join(c.TaskReferences, " #"))
		}
		fmt.Fprintln(w, line)
	}
}

func renderAnalysis(w io.Writer, repo git.Repository, a git.CommitAnalysis) {
	header := []string{
		styleTitle.Render("History of "+repo.Name) + "  " + styleMuted.Render(repo.Path),
		fmt.Sprintf("Commits:  %d", a.TotalCommits),
	}
	if a.TotalCommits > 0 {
		header = append(header, fmt.Sprintf("Range:    %s .. %s", a.DateRange.From.Format(time.DateOnly), a.DateRange.To.Format(time.DateOnly)))
	}
	header = append(header,
		fmt.Sprintf("Velocity: %.2f commits/day, %.1f lines/commit", a.CodeVelocity.AvgCommitsPerDay, a.CodeVelocity.AvgLinesChanged),
		fmt.Sprintf("Lines:    %s %s",
			styleSuccess.Render(fmt.Sprintf("+%d", a.CodeVelocity.TotalLinesAdded)),
			styleError.Render(fmt.Sprintf("-%d", a.CodeVelocity.TotalLinesDeleted))),
	)
	fmt.Fprintln(w, styleBox.Render(strings.Join(header, "\n")))

	if len(a.Authors) > 0 {
		fmt.Fprintln(w, styleSection.Render("Authors"))
		for i, au := range a.Authors {
			if i == humanLimit {
				fmt.Fprintln(w, styleMuted.Render(fmt.Sprintf("  ... %d more", len(a.Authors)-humanLimit)))
				break
			}
			fmt.Fprintf(w, "  %4d  %s %s  %s\n", au.CommitCount, au.Name, styleMuted.Render("<"+au.Email+">"),
				styleMuted.Render(fmt.Sprintf("+%d -%d", au.LinesAdded, au.LinesDeleted)))
		}
	}

	if len(a.FileChangePatterns) > 0 {
		fmt.Fprintln(w, styleSection.Render("Most changed files"))
		for i, f := range a.FileChangePatterns {
			if i == humanLimit {
				break
			}
			fmt.Fprintf(w, "  %4d  %s\n", f.Count, f.Path)
		}
	}

	if groups := git.GroupByTask(a); len(groups) > 0 {
		fmt.Fprintln(w, styleSection.Render("Task references"))
		for _, g := range groups {
			hashes := make([]string, 0, len(g.Commits))
			for _, h := range g.Commits {
				hashes = append(hashes, shortHash(h))
			}
			fmt.Fprintf(w, "  %s  %s\n", styleWarning.Render("#"+g.TaskID), styleMuted.Render(strings.Join(hashes, " ")))
		}
	}
}

func renderOutcome(w io.Writer, o git.SyncOutcome) {
	for _, step := range []*git.StepResult{o.Pull, o.Push} {
		if step == nil {
			continue
		}
		mark := styleSuccess.Render("ok")
		if !step.Success {
			mark = styleError.Render("failed")
		}
		fmt.Fprintf(w, "%-5s %s\n", step.Operation, mark)
	}

	switch o.Kind {
	case git.SyncSuccess:
		fmt.Fprintln(w, styleSuccess.Render("up to date with remote"))
	case git.SyncNeedsUpstream, git.SyncNeedsPull:
		fmt.Fprintln(w, styleWarning.Render(o.String()))
	default:
		fmt.Fprintln(w, styleError.Render(o.String()))
	}
}

func renderRepositories(w io.Writer, repos []git.Repository) {
	if len(repos) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no repositories found"))
		return
	}
	for _, r := range repos {
		suffix := ""
		if r.IsWorktree {
			suffix = " " + styleMuted.Render("(worktree)")
		}
		fmt.Fprintf(w, "%s  %s%s\n", styleAccent.Render(r.Name), r.Path, suffix)
	}
}

func renderReports(w io.Writer, reports []git.StoredReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no archived reports"))
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s  %s  %4d commits  %s\n",
			styleAccent.Render(r.ID),
			styleMuted.Render(r.GeneratedAt.Local().Format("2006-01-02 15:04")),
			r.TotalCommits,
			r.RepositoryName)
	}
}

func renderCorrelations(w io.Writer, byTask map[string][]git.TaskCorrelation) {
	if len(byTask) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no commits reference a task"))
		return
	}
	ids := make([]string, 0, len(byTask))
	for id := range byTask {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(w, styleWarning.Render("#"+id))
		for _, c := range byTask[id] {
			fmt.Fprintf(w, "  %s  %.0f%%  %s\n", styleAccent.Render(shortHash(c.CommitHash)), c.Confidence*100, styleMuted.Render(c.Reasoning))
		}
	}
}
