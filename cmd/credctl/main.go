// Command credctl administers a credcore Postgres database.
//
// Usage:
//
//	credctl migrate
//	credctl hash-password
//	credctl add-user -username alice [-email alice@example.com] [-role admin] [-id ID]
//
// Passwords are read from the terminal without echo, or from the first line
// of stdin when it is not a terminal.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/internal/appconfig"
	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/pgstore"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// Test seams.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	openDB       = pgstore.Open
	migrateDB    = pgstore.Migrate
)

const usage = `usage: credctl <command> [flags]

commands:
  migrate         apply database migrations
  hash-password   print an argon2id hash for a password
  add-user        create a user in the users table
`

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := c.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "credctl:", err)
		os.Exit(1)
	}
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet("credctl "+cmd, flag.ContinueOnError)
	fs.SetOutput(c.stderr)

	switch cmd {
	case "migrate":
		s, err := appconfig.Load(fs, rest, ".env")
		if err != nil {
			return err
		}
		return c.migrate(ctx, s)

	case "hash-password":
		if _, err := appconfig.Load(fs, rest, ".env"); err != nil {
			return err
		}
		pass, err := c.readPassword()
		if err != nil {
			return err
		}
		encoded, err := hashPassword(pass)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, encoded)
		return nil

	case "add-user":
		var u credcore.UserRecord
		fs.StringVar(&u.ID, "id", "", "user id (random UUID when empty)")
		fs.StringVar(&u.Username, "username", "", "login name")
		fs.StringVar(&u.Email, "email", "", "email address")
		fs.StringVar(&u.Role, "role", "user", "role claim")
		s, err := appconfig.Load(fs, rest, ".env")
		if err != nil {
			return err
		}
		return c.addUser(ctx, s, u)

	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return nil
	}

	fmt.Fprint(c.stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *cli) open(ctx context.Context, s appconfig.Settings) (*sql.DB, error) {
	if s.DatabaseDSN == "" {
		return nil, errors.New("CREDCORE_DATABASE_DSN is not set")
	}
	return openDB(ctx, s.DatabaseDSN)
}

func (c *cli) migrate(ctx context.Context, s appconfig.Settings) error {
	db, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDB(ctx, db); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "migrations applied")
	return nil
}

func (c *cli) addUser(ctx context.Context, s appconfig.Settings, u credcore.UserRecord) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return errors.New("-username is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	pass, err := c.readPassword()
	if err != nil {
		return err
	}
	if u.PasswordHash, err = hashPassword(pass); err != nil {
		return err
	}

	db, err := c.open(ctx, s)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pgstore.NewUsers(db).Create(ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "created user %s (%s)\n", u.Username, u.ID)
	return nil
}

func (c *cli) readPassword() (string, error) {
	if f, ok := c.stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(c.stderr, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", err
		}
		return checkPassword(string(pw))
	}

	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(pass string) (string, error) {
	if pass == "" {
		return "", errors.New("password is empty")
	}
	return pass, nil
}

func hashPassword(pass string) (string, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return "", err
	}
	return hasher.Hash(pass)
}
