package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// severityLabels drives section ordering and table labels, highest tier first.
var severityLabels = []struct {
	severity schemas.Severity
	label    string
}{
	{schemas.SeverityCritical, "🔴 Critical"},
	{schemas.SeveritySerious, "🟠 Serious"},
	{schemas.SeverityModerate, "🟡 Moderate"},
	{schemas.SeverityMinor, "🔵 Minor"},
}

// MarkdownReporter renders the audit payload as a human-readable remediation
// report: executive summary, findings breakdown, per-issue detail, and a
// retest checklist.
type MarkdownReporter struct {
	writer io.WriteCloser
}

// NewMarkdownReporter takes ownership of the writer.
func NewMarkdownReporter(w io.WriteCloser) *MarkdownReporter {
	return &MarkdownReporter{writer: w}
}

func (r *MarkdownReporter) Write(payload *schemas.AuditPayload) error {
	md := markdown.NewMarkdown(r.writer)

	r.writeHeader(md, payload)
	r.writeSummary(md, payload)
	r.writeFindingsTable(md, payload)
	r.writeDetails(md, payload)
	r.writeErroredRoutes(md, payload)
	r.writeRetestChecklist(md, payload)

	if err := md.Build(); err != nil {
		return fmt.Errorf("failed to render markdown report: %w", err)
	}
	return nil
}

func (r *MarkdownReporter) Close() error {
	return r.writer.Close()
}

func (r *MarkdownReporter) writeHeader(md *markdown.Markdown, payload *schemas.AuditPayload) {
	md.H1("Accessibility Audit Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Origin", "`" + payload.Origin + "`"},
			{"Audit ID", "`" + payload.AuditID + "`"},
			{"Generated", payload.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Routes Scanned", strconv.Itoa(len(payload.Routes))},
			{"Compliance Score", fmt.Sprintf("**%d / 100** (%s)", payload.Score.Value, payload.Score.Grade)},
		},
	})
	md.PlainText("")
}

func (r *MarkdownReporter) writeSummary(md *markdown.Markdown, payload *schemas.AuditPayload) {
	md.H2("Executive Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(severityLabels)+1)
	total := 0
	for _, s := range severityLabels {
		count := payload.Summary[s.severity]
		total += count
		rows = append(rows, []string{s.label, strconv.Itoa(count)})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(total) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Findings"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case payload.Summary[schemas.SeverityCritical] > 0:
		md.Cautionf("%d critical issue(s) block access for some users and should be fixed first.",
			payload.Summary[schemas.SeverityCritical])
	case payload.Summary[schemas.SeveritySerious] > 0:
		md.Warningf("%d serious issue(s) significantly degrade the experience for assistive technology users.",
			payload.Summary[schemas.SeveritySerious])
	case total > 0:
		md.Note("Only moderate and minor issues detected.")
	default:
		md.Tip("No accessibility issues detected on the scanned routes.")
	}
	md.PlainText("")
}

func (r *MarkdownReporter) writeFindingsTable(md *markdown.Markdown, payload *schemas.AuditPayload) {
	md.H2("Findings")
	md.PlainText("")

	if len(payload.Findings) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(payload.Findings))
	for _, f := range payload.Findings {
		rows = append(rows, []string{
			"`" + f.ID + "`",
			string(f.Severity),
			f.RuleID,
			"`" + f.PrimarySelector + "`",
			strconv.Itoa(f.TotalInstances),
			strconv.Itoa(f.PagesAffected),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Severity", "Rule", "Selector", "Instances", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (r *MarkdownReporter) writeDetails(md *markdown.Markdown, payload *schemas.AuditPayload) {
	if len(payload.Findings) == 0 {
		return
	}

	md.H2("Issue Details")
	md.PlainText("")

	for _, f := range payload.Findings {
		md.H3f("%s: %s", f.RuleID, f.Message)
		md.PlainText("")

		facts := []string{
			fmt.Sprintf("Severity: %s (priority %d)", f.Severity, f.PriorityScore),
			fmt.Sprintf("Selector: `%s`", f.PrimarySelector),
			fmt.Sprintf("Instances: %d across %d page(s)", f.TotalInstances, f.PagesAffected),
		}
		if len(f.WCAG) > 0 {
			facts = append(facts, "WCAG: "+strings.Join(f.WCAG, ", "))
		}
		if f.FixAvailable {
			facts = append(facts, "An automated fix suggestion is available for this rule.")
		}
		md.BulletList(facts...)
		md.PlainText("")

		if len(f.AffectedURLs) > 0 {
			md.PlainText("Affected routes:")
			md.BulletList(f.AffectedURLs...)
			md.PlainText("")
		}

		for _, ev := range f.Evidence {
			md.CodeBlocks(markdown.SyntaxHighlightHTML, ev.HTML)
			md.PlainText("")
		}
	}
}

func (r *MarkdownReporter) writeErroredRoutes(md *markdown.Markdown, payload *schemas.AuditPayload) {
	if len(payload.ErroredRoutes) == 0 {
		return
	}

	md.H2("Not Tested")
	md.PlainText("")
	md.PlainText("The following routes could not be scanned. Coverage claims exclude them.")
	md.PlainText("")

	rows := make([][]string, 0, len(payload.ErroredRoutes))
	for _, er := range payload.ErroredRoutes {
		rows = append(rows, []string{"`" + er.Path + "`", er.Reason})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Route", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (r *MarkdownReporter) writeRetestChecklist(md *markdown.Markdown, payload *schemas.AuditPayload) {
	md.H2("Retest Checklist")
	md.PlainText("")

	items := []string{
		"Re-run the audit against the same origin after remediation.",
		"Confirm previously reported finding IDs no longer appear.",
	}
	if len(payload.ErroredRoutes) > 0 {
		items = append(items, "Restore and re-scan the routes listed under Not Tested.")
	}
	if payload.Summary[schemas.SeverityCritical] > 0 || payload.Summary[schemas.SeveritySerious] > 0 {
		items = append(items, "Manually verify critical and serious fixes with a screen reader.")
	}
	md.BulletList(items...)
	md.PlainText("")

	md.HorizontalRule()
	md.PlainTextf("*Generated by a11yaudit, audit `%s`*", payload.AuditID)
}
