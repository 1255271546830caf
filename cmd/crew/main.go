package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/skybtp/crewboard/pkg/api/client"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "signup":
		err = commandSignup(args)
	case "invite":
		err = commandInvite(args)
	case "leader":
		err = commandLeader(args)
	case "board":
		err = commandBoard(args)
	case "assign":
		err = commandAssign(args)
	case "unassign":
		err = commandUnassign(args)
	case "reassign":
		err = commandReassign(args)
	case "move":
		err = commandMove(args)
	case "delete-leader":
		err = commandDeleteLeader(args)
	case "watch":
		err = commandWatch(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", resp.User.Email, resp.User.Role)
	return nil
}

func commandSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	company := fs.String("company", "", "Company name")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	if strings.TrimSpace(*company) == "" {
		return errors.New("--company is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Signup(ctx, apiclient.SignupInput{
		Email:       *email,
		Password:    secret,
		FirstName:   *first,
		LastName:    *last,
		CompanyName: *company,
	})
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("account created: %s company=%s\n", resp.User.Email, resp.User.CompanyID)
	return nil
}

func commandInvite(args []string) error {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Initial password (supply to avoid prompt)")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	phone := fs.String("phone", "", "Phone number")
	role := fs.String("role", "TECHNICIEN", "Role (ADMIN|BUREAU|TECHNICIEN)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}
	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	user, err := client.Invite(ctx, token, apiclient.InviteInput{
		Email:     *email,
		Password:  secret,
		FirstName: *first,
		LastName:  *last,
		Phone:     *phone,
		Role:      strings.ToUpper(strings.TrimSpace(*role)),
	})
	if err != nil {
		return err
	}
	fmt.Printf("user invited: %s (%s) %s\n", user.ID, user.Role, user.Email)
	return nil
}

func commandLeader(args []string) error {
	if len(args) == 0 || args[0] != "create" {
		return errors.New("usage: crew leader create --first <name> [--last name] [--color #RRGGBB] [--user id] [--capacity N]")
	}
	fs := flag.NewFlagSet("leader create", flag.ExitOnError)
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	color := fs.String("color", "", "Display color (#RRGGBB)")
	userID := fs.String("user", "", "Link to an existing user")
	capacity := fs.Int("capacity", 0, "Roster capacity (server default when 0)")
	fs.Parse(args[1:])

	if strings.TrimSpace(*first) == "" && strings.TrimSpace(*userID) == "" {
		return errors.New("--first or --user is required")
	}
	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	leader, err := client.CreateTeamLeader(ctx, token, apiclient.CreateTeamLeaderInput{
		FirstName: *first,
		LastName:  *last,
		Color:     *color,
		UserID:    *userID,
		Capacity:  *capacity,
	})
	if err != nil {
		return err
	}
	fmt.Printf("team leader created: %s (%s %s) capacity=%d\n", leader.ID, leader.FirstName, leader.LastName, leader.Capacity)
	return nil
}

func commandWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, stop := notifyContext()
	defer stop()

	fmt.Println("watching roster changes (ctrl-c to stop)")
	err = client.StreamEvents(ctx, token, func(ev apiclient.Event) error {
		line := fmt.Sprintf("%s\t%s\tleader=%s", ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.TeamLeaderID)
		if ev.FromTeamLeaderID != "" {
			line += " from=" + ev.FromTeamLeaderID
		}
		if len(ev.CollaboratorIDs) > 0 {
			line += " collaborators=" + strings.Join(ev.CollaboratorIDs, ",")
		}
		fmt.Println(line)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func readSecret(flagValue string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func printUsage() {
	fmt.Printf("crew CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	crew signup --email admin@example.com --company "BTP Martin" [--first name] [--last name] [--api ` + defaultAPIBase + `]
	crew login --email user@example.com [--password secret] [--api ` + defaultAPIBase + `]
	crew invite --email tech@example.com [--first name] [--last name] [--phone n] [--role TECHNICIEN]
	crew leader create --first <name> [--last name] [--color #RRGGBB] [--user id] [--capacity N]
	crew board [--json]
	crew assign --collaborator <id> --leader <id>
	crew unassign --leader <id> --collaborator <id> [--yes]
	crew reassign --collaborator <id> --from <id> --to <id>
	crew move --collaborator <id> --leader <id>
	crew delete-leader --leader <id> [--yes]
	crew watch
	crew version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
