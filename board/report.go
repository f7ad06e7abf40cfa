package board

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// WriteReport prints a human readable report of a run: one block per group
// followed by the "<group id>: <score>" summary list.
func WriteReport(w io.Writer, res *Result) error {
	bold := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	ew := &errWriter{w: w}

	if res.Board != "" {
		ew.printf("%s %s\n\n", bold("Board"), res.Board)
	}

	for _, a := range res.Analyses {
		if !a.TeamResolved || !a.TopicResolved {
			ew.printf("%s\n", yellow("NO ID GENERATED FOR "+a.GroupID()))
			for _, it := range memberOrder(a) {
				ew.printf("...\t %s %s %s\n", memberColor(it), it.ID, it.Text)
			}
		}

		ew.printf("%s %s\n", bold("Group"), a.GroupID())
		ew.printf("   %d total responses\n", a.Population)
		ew.printf("   Score: %s\n", scoreColor(a.Score)(a.Score.String()))
		ew.printf("   Positive Topics: %s\n", green(formatPhrases(a.Positive.Phrases)))
		ew.printf("   Negative Topics: %s\n", red(formatPhrases(a.Negative.Phrases)))
		for _, it := range memberOrder(a) {
			ew.printf("   %s, %q\n", memberColor(it), it.Text)
		}
		for _, an := range a.Anomalies {
			ew.printf("   %s\n", gray("! "+string(an.Kind)+": "+an.Message))
		}
		ew.printf("\n\n")
	}

	if ew.err != nil {
		return ew.err
	}
	return WriteScoreSummary(w, res.Analyses)
}

// WriteScoreSummary prints one "<group id>: <score>" line per analysis
func WriteScoreSummary(w io.Writer, analyses []Analysis) error {
	for _, a := range analyses {
		if _, err := fmt.Fprintf(w, "%s: %s\n", a.GroupID(), a.Score); err != nil {
			return err
		}
	}
	return nil
}

// csvHeader is the column layout written by WriteCSV
var csvHeader = []string{
	"group", "group_id", "team", "topic", "population", "score",
	"positive", "neutral", "negative",
	"positive_phrases", "neutral_phrases", "negative_phrases",
	"anomalies",
}

// WriteCSV writes one row per analysis. Groups without a score have an
// empty score cell.
func WriteCSV(w io.Writer, analyses []Analysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, a := range analyses {
		score := ""
		if a.Score.Valid {
			score = strconv.Itoa(a.Score.Value)
		}
		kinds := make([]string, len(a.Anomalies))
		for i, an := range a.Anomalies {
			kinds[i] = string(an.Kind)
		}
		record := []string{
			strconv.Itoa(a.Group),
			a.GroupID(),
			a.TeamName,
			a.Topic,
			strconv.Itoa(a.Population),
			score,
			a.Positive.Text,
			a.Neutral.Text,
			a.Negative.Text,
			strings.Join(a.Positive.Phrases, "; "),
			strings.Join(a.Neutral.Phrases, "; "),
			strings.Join(a.Negative.Phrases, "; "),
			strings.Join(kinds, ";"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row for group %d: %w", a.Group, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// memberOrder lists notes from DarkGreen down to Red, then team labels, then
// topic labels. Equal colors keep group order.
func memberOrder(a Analysis) []Item {
	members := make([]Item, 0, len(a.Notes)+len(a.Labels))
	members = append(members, a.Notes...)
	members = append(members, a.Labels...)
	sort.SliceStable(members, func(i, j int) bool {
		return memberRank(members[i]) < memberRank(members[j])
	})
	return members
}

func memberRank(it Item) int {
	switch it.Category {
	case CategoryTeamLabel:
		return 1000
	case CategoryTopicLabel:
		return 1001
	}
	return int(RankDarkGreen - it.Rank)
}

func memberColor(it Item) string {
	if it.IsLabel() {
		return it.Category.String()
	}
	return it.Rank.String()
}

func scoreColor(s Score) func(a ...interface{}) string {
	switch {
	case !s.Valid:
		return color.New(color.FgHiBlack).SprintFunc()
	case s.Value >= int(RankLightGreen):
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case s.Value >= int(RankYellow):
		return color.New(color.FgYellow).SprintFunc()
	}
	return color.New(color.FgRed, color.Bold).SprintFunc()
}

func formatPhrases(phrases []string) string {
	if len(phrases) == 0 {
		return "[]"
	}
	return "[" + strings.Join(phrases, ", ") + "]"
}

// errWriter remembers the first write error
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
