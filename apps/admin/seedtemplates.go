package main

import (
	"context"

	"github.com/trezcool/maendeleo/core/milestone"
)

func intPtr(i int) *int { return &i }

// defaultTemplates is the global milestone catalog loaded into a fresh
// deployment. Programs and departments refine it with scoped overrides later.
var defaultTemplates = []milestone.NewTemplate{
	{Name: "Research Proposal", DocumentType: "proposal", SortOrder: 10, DefaultDueDays: intPtr(90), AlertLeadDays: 14},
	{Name: "Literature Review", DocumentType: "literature_review", SortOrder: 20, DefaultDueDays: intPtr(180), AlertLeadDays: 14},
	{Name: "Progress Report", DocumentType: "progress_report", SortOrder: 30, DefaultDueDays: intPtr(365), AlertLeadDays: 21},
	{Name: "Thesis Draft", DocumentType: "thesis_draft", SortOrder: 40, DefaultDueDays: intPtr(540), AlertLeadDays: 30},
	{Name: "Final Thesis", DocumentType: "final_thesis", SortOrder: 50, DefaultDueDays: intPtr(720), AlertLeadDays: 30},
}

func (cli *commandLine) seedTemplates() error {
	ctx := context.Background()

	existing, err := cli.milestoneSvc.ActiveTemplates(ctx, "", "")
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, tpl := range existing {
		seen[tpl.Name] = true
	}

	var created int
	for _, nt := range defaultTemplates {
		if seen[nt.Name] {
			continue
		}
		if _, err := cli.milestoneSvc.CreateTemplate(ctx, nt); err != nil {
			return err
		}
		created++
	}
	logger.Printf("seeded %d milestone template(s)", created)
	return nil
}
