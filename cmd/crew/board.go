package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/skybtp/crewboard/pkg/config"
	"github.com/skybtp/crewboard/pkg/logger"
	"github.com/skybtp/crewboard/pkg/roster"
)

// promptConfirmer asks on out and reads a y/N answer from in.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, prompt roster.Prompt) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt.Message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	}
	return false
}

func confirmerFor(yes bool) roster.Confirmer {
	if yes {
		return roster.AlwaysConfirm
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// no one to ask; destructive changes need --yes
		return nil
	}
	return promptConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// loadBoard builds a board for the stored session and loads it.
func loadBoard(ctx context.Context, yes bool) (*roster.Board, error) {
	client, token, err := session()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(os.Stderr, "crew", logger.ParseLevel(config.GetString("CREW_LOG_LEVEL", "warn")))
	board := roster.New(client, roster.Session{Token: token},
		roster.WithLogger(log),
		roster.WithConfirmer(confirmerFor(yes)),
	)
	if _, err := board.Load(ctx); err != nil {
		return nil, notice(err)
	}
	return board, nil
}

// notice turns a board error into the message shown to the user.
func notice(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(roster.Describe(err))
}

func commandBoard(args []string) error {
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the board as JSON")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	board, err := loadBoard(ctx, false)
	if err != nil {
		return err
	}
	if *asJSON {
		return printBoardJSON(os.Stdout, board.State())
	}
	printBoard(os.Stdout, board.State())
	return nil
}

func commandAssign(args []string) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	collaborator := fs.String("collaborator", "", "Collaborator identifier")
	leader := fs.String("leader", "", "Team leader identifier")
	fs.Parse(args)
	if err := required(map[string]string{"--collaborator": *collaborator, "--leader": *leader}); err != nil {
		return err
	}
	return runBoard(false, func(ctx context.Context, b *roster.Board) error {
		if err := b.Assign(ctx, *collaborator, *leader); err != nil {
			return err
		}
		fmt.Println("collaborator assigned")
		return nil
	})
}

func commandUnassign(args []string) error {
	fs := flag.NewFlagSet("unassign", flag.ExitOnError)
	leader := fs.String("leader", "", "Team leader identifier")
	collaborator := fs.String("collaborator", "", "Collaborator identifier")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)
	if err := required(map[string]string{"--collaborator": *collaborator, "--leader": *leader}); err != nil {
		return err
	}
	return runBoard(*yes, func(ctx context.Context, b *roster.Board) error {
		if err := b.Unassign(ctx, *leader, *collaborator); err != nil {
			return err
		}
		fmt.Println("collaborator unassigned")
		return nil
	})
}

func commandReassign(args []string) error {
	fs := flag.NewFlagSet("reassign", flag.ExitOnError)
	collaborator := fs.String("collaborator", "", "Collaborator identifier")
	from := fs.String("from", "", "Current team leader")
	to := fs.String("to", "", "Target team leader")
	fs.Parse(args)
	if err := required(map[string]string{"--collaborator": *collaborator, "--from": *from, "--to": *to}); err != nil {
		return err
	}
	return runBoard(false, func(ctx context.Context, b *roster.Board) error {
		if err := b.Reassign(ctx, *collaborator, *from, *to); err != nil {
			return err
		}
		fmt.Println("collaborator reassigned")
		return nil
	})
}

func commandMove(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	collaborator := fs.String("collaborator", "", "Collaborator identifier")
	leader := fs.String("leader", "", "Target team leader")
	fs.Parse(args)
	if err := required(map[string]string{"--collaborator": *collaborator, "--leader": *leader}); err != nil {
		return err
	}
	return runBoard(false, func(ctx context.Context, b *roster.Board) error {
		if err := b.RequestAssignment(ctx, *collaborator, *leader); err != nil {
			return err
		}
		fmt.Println("collaborator moved")
		return nil
	})
}

func commandDeleteLeader(args []string) error {
	fs := flag.NewFlagSet("delete-leader", flag.ExitOnError)
	leader := fs.String("leader", "", "Team leader identifier")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)
	if err := required(map[string]string{"--leader": *leader}); err != nil {
		return err
	}
	return runBoard(*yes, func(ctx context.Context, b *roster.Board) error {
		if err := b.DeleteTeamLeader(ctx, *leader); err != nil {
			return err
		}
		fmt.Println("team leader deleted")
		return nil
	})
}

func runBoard(yes bool, fn func(context.Context, *roster.Board) error) error {
	ctx, stop := notifyContext()
	defer stop()
	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	board, err := loadBoard(loadCtx, yes)
	if err != nil {
		return err
	}
	opCtx, cancelOp := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelOp()
	return notice(fn(opCtx, board))
}

func required(flags map[string]string) error {
	missing := make([]string, 0)
	for name, value := range flags {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%s required", strings.Join(missing, ", "))
}

func printBoard(w io.Writer, s roster.State) {
	if len(s.TeamLeaders) == 0 {
		fmt.Fprintln(w, "no team leaders")
	}
	for _, l := range s.TeamLeaders {
		marker := ""
		if l.Full() {
			marker = " FULL"
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d%s\n", l.ID, l.Name(), l.Count(), l.Capacity, marker)
		for _, c := range l.Roster {
			fmt.Fprintf(w, "  - %s\t%s\t%s\n", c.ID, c.Name(), c.Role)
		}
	}
	fmt.Fprintf(w, "\nunassigned (%d)\n", len(s.Unassigned))
	for _, c := range s.Unassigned {
		fmt.Fprintf(w, "  - %s\t%s\t%s\n", c.ID, c.Name(), c.Role)
	}
}

type boardJSON struct {
	TeamLeaders []leaderJSON       `json:"team_leaders"`
	Unassigned  []collaboratorJSON `json:"unassigned"`
}

type leaderJSON struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Color         string             `json:"color"`
	Capacity      int                `json:"capacity"`
	Count         int                `json:"collaborators_count"`
	Collaborators []collaboratorJSON `json:"collaborators"`
}

type collaboratorJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func printBoardJSON(w io.Writer, s roster.State) error {
	out := boardJSON{TeamLeaders: make([]leaderJSON, 0, len(s.TeamLeaders)), Unassigned: toCollaboratorsJSON(s.Unassigned)}
	for _, l := range s.TeamLeaders {
		out.TeamLeaders = append(out.TeamLeaders, leaderJSON{
			ID:            l.ID,
			Name:          l.Name(),
			Color:         l.Color,
			Capacity:      l.Capacity,
			Count:         l.Count(),
			Collaborators: toCollaboratorsJSON(l.Roster),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toCollaboratorsJSON(list []roster.Collaborator) []collaboratorJSON {
	out := make([]collaboratorJSON, 0, len(list))
	for _, c := range list {
		out = append(out, collaboratorJSON{ID: c.ID, Name: c.Name(), Role: c.Role, Email: c.Email, Phone: c.Phone})
	}
	return out
}
