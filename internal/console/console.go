package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const (
	createdLayout = "2006-01-02 15:04:05"
	helpLine      = "Commands: 'users' - show users, 'status' - show mode, 'clear' - delete all users, 'exit' - quit"
)

// Reporter is the reporting surface the console reads from.
type Reporter interface {
	Users(ctx context.Context) ([]types.RegisteredUser, error)
	Status(ctx context.Context) (types.SystemStatus, error)
	ClearUsers(ctx context.Context) (int64, error)
}

// Console is the operator command loop of the standalone reader.
type Console struct {
	svc    Reporter
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger
}

func New(svc Reporter, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{svc: svc, in: bufio.NewScanner(in), out: out, logger: logger}
}

// Banner prints the startup header.
func (c *Console) Banner(masterKey string) {
	fmt.Fprintln(c.out, "=== NFC Access Control System ===")
	fmt.Fprintf(c.out, "Master Key UID: %s\n", masterKey)
	fmt.Fprintln(c.out, helpLine)
	fmt.Fprintln(c.out, strings.Repeat("=", 50))
}

// Run reads commands until "exit", end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for c.in.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd := strings.ToLower(strings.TrimSpace(c.in.Text()))
		switch cmd {
		case "":
		case "exit", "quit":
			return nil
		case "users":
			c.printUsers(ctx)
		case "status":
			c.printStatus(ctx)
		case "clear":
			c.clear(ctx)
		default:
			fmt.Fprintln(c.out, "Unknown command. Available: users, status, clear, exit")
		}
	}
	return c.in.Err()
}

func (c *Console) printUsers(ctx context.Context) {
	users, err := c.svc.Users(ctx)
	if err != nil {
		c.fail("list users", err)
		return
	}

	fmt.Fprintln(c.out, "\n=== REGISTERED USERS ===")
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUID\tNAME\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.TagID, u.DisplayName, u.CreatedAt.Format(createdLayout))
	}
	_ = tw.Flush()
	fmt.Fprintf(c.out, "Total: %d users\n\n", len(users))
}

func (c *Console) printStatus(ctx context.Context) {
	st, err := c.svc.Status(ctx)
	if err != nil {
		c.fail("read status", err)
		return
	}
	mode := service.ModeInactive
	if st.RegistrationMode {
		mode = service.ModeActive
	}
	fmt.Fprintf(c.out, "Registration mode: %s\n", mode)
	fmt.Fprintf(c.out, "Users: %d  Scans today: %d  Uptime: %s\n", st.TotalUsers, st.ScansToday, st.ServerUptime)
}

func (c *Console) clear(ctx context.Context) {
	fmt.Fprint(c.out, "Clear all users? (y/n): ")
	if !c.in.Scan() {
		fmt.Fprintln(c.out)
		return
	}
	if strings.ToLower(strings.TrimSpace(c.in.Text())) != "y" {
		fmt.Fprintln(c.out, "Cancelled")
		return
	}

	n, err := c.svc.ClearUsers(ctx)
	if err != nil {
		c.fail("clear users", err)
		return
	}
	c.logger.Info("users cleared from console", zap.Int64("count", n))
	fmt.Fprintln(c.out, "All users cleared")
}

func (c *Console) fail(what string, err error) {
	c.logger.Error("console command failed", zap.String("command", what), zap.Error(err))
	fmt.Fprintf(c.out, "Error: could not %s: %v\n", what, err)
}
