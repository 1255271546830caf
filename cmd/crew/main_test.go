package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skybtp/crewboard/pkg/roster"
)

func TestPromptConfirmer(t *testing.T) {
	cases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"oui\n": true,
		"n\n":   false,
		"\n":    false,
		"maybe": false,
		"":      false,
		" yes ": true,
	}
	for input, want := range cases {
		var out bytes.Buffer
		c := promptConfirmer{in: bufio.NewReader(strings.NewReader(input)), out: &out}
		got := c.Confirm(context.Background(), roster.Prompt{Message: "Delete team leader Alice?"})
		if got != want {
			t.Fatalf("input %q: expected %v, got %v", input, want, got)
		}
		if !strings.HasPrefix(out.String(), "Delete team leader Alice? [y/N]: ") {
			t.Fatalf("unexpected prompt %q", out.String())
		}
	}
}

func TestConfirmerForYes(t *testing.T) {
	if !confirmerFor(true).Confirm(context.Background(), roster.Prompt{Message: "Delete?"}) {
		t.Fatalf("expected --yes to approve every prompt")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew", "config.json")
	t.Setenv("CREW_CONFIG", path)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBase {
		t.Fatalf("expected default base, got %q", cfg.APIBaseURL)
	}
	if _, _, err := session(); err == nil {
		t.Fatalf("expected session without token to fail")
	}

	cfg.AccessToken = "token-123"
	cfg.APIBaseURL = "http://crew.example:9000"
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("expected %+v, got %+v", cfg, loaded)
	}
	client, token, err := session()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if token != "token-123" || client.BaseURL() != "http://crew.example:9000" {
		t.Fatalf("unexpected session %q %q", token, client.BaseURL())
	}
}

func TestRequiredFlags(t *testing.T) {
	if err := required(map[string]string{"--leader": "l1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := required(map[string]string{"--to": "", "--from": " ", "--leader": "l1"})
	if err == nil || err.Error() != "--from, --to required" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func sampleState() roster.State {
	return roster.State{
		TeamLeaders: []roster.TeamLeader{{
			ID:        "l1",
			FirstName: "Alice",
			LastName:  "Martin",
			Capacity:  2,
			Roster: []roster.Collaborator{
				{ID: "c1", FirstName: "Bruno", Role: roster.RoleTechnician},
				{ID: "c2", FirstName: "Chloé", Role: roster.RoleBureau},
			},
		}},
		Unassigned: []roster.Collaborator{{ID: "c3", FirstName: "Denis", LastName: "Roux", Role: roster.RoleTechnician}},
	}
}

func TestPrintBoard(t *testing.T) {
	var out bytes.Buffer
	printBoard(&out, sampleState())
	text := out.String()
	for _, want := range []string{"l1\tAlice Martin\t2/2 FULL", "  - c2\tChloé\tBUREAU", "unassigned (1)", "  - c3\tDenis Roux\tTECHNICIEN"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestPrintBoardJSON(t *testing.T) {
	var out bytes.Buffer
	if err := printBoardJSON(&out, sampleState()); err != nil {
		t.Fatalf("print json: %v", err)
	}
	var decoded boardJSON
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.TeamLeaders) != 1 || decoded.TeamLeaders[0].Count != 2 || len(decoded.Unassigned) != 1 {
		t.Fatalf("unexpected board %+v", decoded)
	}
}
