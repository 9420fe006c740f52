package main

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/storage/database/inmem"
)

func Test_commandLine_seedTemplates(t *testing.T) {
	logger = log.New(new(bytes.Buffer), "", 0)

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening inmem DB failed: %v", err)
	}
	cli := &commandLine{
		milestoneSvc: milestone.NewService(inmemdb.NewMilestoneRepository(db), core.NewSystemClock()),
	}

	if err := cli.seedTemplates(); err != nil {
		t.Fatalf("seedTemplates() failed: %v", err)
	}
	tmpls, err := cli.milestoneSvc.ActiveTemplates(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ActiveTemplates() failed: %v", err)
	}
	if len(tmpls) != len(defaultTemplates) {
		t.Errorf("seeded %d templates, want %d", len(tmpls), len(defaultTemplates))
	}

	// re-seeding is a no-op
	if err := cli.seedTemplates(); err != nil {
		t.Fatalf("seedTemplates() failed: %v", err)
	}
	tmpls, err = cli.milestoneSvc.ActiveTemplates(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ActiveTemplates() failed: %v", err)
	}
	if len(tmpls) != len(defaultTemplates) {
		t.Errorf("re-seed grew the catalog to %d templates, want %d", len(tmpls), len(defaultTemplates))
	}
}
