package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/estate-copilot/server/internal/copilot/model"
)

// CompileReport joins the approved candidates with their analyses and
// decorations into the final report. It is a pure function of its inputs:
// every approved candidate must carry an analysis record (success or recorded
// failure), and the generation timestamp is derived from the records, so
// recompiling from the same thread state yields an identical report.
func CompileReport(
	criteria model.SearchCriteria,
	candidates []*model.Candidate,
	analyses map[string]*model.LocationAnalysis,
	decorations map[string]*model.DecoratedImage,
) (*model.Report, error) {
	for _, c := range candidates {
		if _, ok := analyses[c.ID]; !ok {
			return nil, fmt.Errorf("compile report: candidate %s has no analysis record", c.ID)
		}
	}

	report := &model.Report{
		Criteria:    criteria,
		Candidates:  candidates,
		Analyses:    analyses,
		Decorations: decorations,
		GeneratedAt: latestTimestamp(analyses, decorations),
	}
	report.Summary = summarize(report)
	return report, nil
}

// latestTimestamp picks the newest record time so the report timestamp is a
// function of the inputs, not of the wall clock at compile time.
func latestTimestamp(analyses map[string]*model.LocationAnalysis, decorations map[string]*model.DecoratedImage) time.Time {
	var latest time.Time
	for _, a := range analyses {
		if a.AnalyzedAt.After(latest) {
			latest = a.AnalyzedAt
		}
	}
	for _, d := range decorations {
		if d != nil && d.GeneratedAt.After(latest) {
			latest = d.GeneratedAt
		}
	}
	return latest
}

// summarize renders the deterministic report summary.
func summarize(r *model.Report) string {
	analyzed := 0
	failed := 0
	for _, a := range r.Analyses {
		if a.Failed {
			failed++
		} else {
			analyzed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Researched %d propert%s in %s",
		len(r.Candidates), pluralY(len(r.Candidates)), r.Criteria.Location)
	if r.Criteria.MaxPrice != nil {
		fmt.Fprintf(&b, " under $%s", formatPrice(*r.Criteria.MaxPrice))
	}
	fmt.Fprintf(&b, ". %d location analys%s completed", analyzed, pluralES(analyzed))
	if failed > 0 {
		fmt.Fprintf(&b, ", %d could not be analyzed", failed)
	}
	b.WriteString(".")

	if decorated := countDecorated(r.Decorations); decorated > 0 {
		fmt.Fprintf(&b, " %d Halloween-decorated photo%s included.", decorated, pluralS(decorated))
	}
	return b.String()
}

func countDecorated(decorations map[string]*model.DecoratedImage) int {
	n := 0
	for _, d := range decorations {
		if d.Available() {
			n++
		}
	}
	return n
}

// FormatText renders the report as readable plain text for chat surfaces that
// cannot display the structured form.
func FormatText(r *model.Report) string {
	var b strings.Builder
	b.WriteString("Property Research Report\n")
	b.WriteString("========================\n\n")
	b.WriteString(r.Summary + "\n")

	ordered := make([]*model.Candidate, len(r.Candidates))
	copy(ordered, r.Candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for i, c := range ordered {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, c.Address)
		if c.Price != nil {
			fmt.Fprintf(&b, "   Price: $%s\n", formatPrice(*c.Price))
		}
		if c.Bedrooms != nil || c.Bathrooms != nil {
			b.WriteString("   ")
			if c.Bedrooms != nil {
				fmt.Fprintf(&b, "%d bed", *c.Bedrooms)
			}
			if c.Bathrooms != nil {
				if c.Bedrooms != nil {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%g bath", *c.Bathrooms)
			}
			b.WriteString("\n")
		}
		if c.SquareFeet != nil {
			fmt.Fprintf(&b, "   %d sqft\n", *c.SquareFeet)
		}
		if c.ListingURL != "" {
			fmt.Fprintf(&b, "   Listing: %s\n", c.ListingURL)
		}

		a := r.Analyses[c.ID]
		if a == nil {
			continue
		}
		if a.Failed {
			fmt.Fprintf(&b, "   Location analysis unavailable: %s\n", a.FailureReason)
			continue
		}
		if a.Walkability != nil {
			fmt.Fprintf(&b, "   Walkability %d/100", *a.Walkability)
			if a.TransitScore != nil {
				fmt.Fprintf(&b, ", transit %d/100", *a.TransitScore)
			}
			b.WriteString("\n")
		}
		for _, pro := range a.Pros {
			fmt.Fprintf(&b, "   + %s\n", pro)
		}
		for _, con := range a.Cons {
			fmt.Fprintf(&b, "   - %s\n", con)
		}
		if d := r.Decorations[c.ID]; d.Available() {
			b.WriteString("   Halloween-decorated photo available\n")
		}
	}
	return b.String()
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	var out []byte
	for i, ch := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, ch)
	}
	return string(out)
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func pluralES(n int) string {
	if n == 1 {
		return "is"
	}
	return "es"
}
