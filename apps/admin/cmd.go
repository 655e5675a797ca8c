package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	conf      *core.Config
	ledgerSvc *ledger.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  ledger [-status STATUS] [-search QUERY] [-json] - list student balances, largest first")
	_, _ = fmt.Fprintln(cli.out, "  stats [-json]                                   - show collection totals")
	_, _ = fmt.Fprintln(cli.out, "  remind [-dry-run] [-json]                       - email the guardians of overdue students")
	_, _ = fmt.Fprintln(cli.out, "  createdb                                        - create the app user & database if missing")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose migration command (up, down, status, ...)")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// wantJSON is true when asked for, or when stdout is not a terminal (piped output).
func (cli *commandLine) wantJSON(flagged bool) bool {
	return flagged || !isTerminalFunc(int(os.Stdout.Fd()))
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	ledgerCmd := cli.newFlagSet("ledger")
	ledgerStatus := ledgerCmd.String("status", "", "Only list students with this status: PAID, PARTIAL, PENDING or OVERDUE.")
	ledgerSearch := ledgerCmd.String("search", "", "Only list students whose name or code contains this.")
	ledgerJSON := ledgerCmd.Bool("json", false, "Print JSON.")

	statsCmd := cli.newFlagSet("stats")
	statsJSON := statsCmd.Bool("json", false, "Print JSON.")

	remindCmd := cli.newFlagSet("remind")
	remindDryRun := remindCmd.Bool("dry-run", false, "List who would be reminded without sending anything.")
	remindJSON := remindCmd.Bool("json", false, "Print JSON.")

	switch args[1] {
	case "ledger":
		if err := cli.parse(ledgerCmd, args[2:]); err != nil {
			return err
		}
		filter := ledger.Filter{Status: ledger.Status(*ledgerStatus), Search: *ledgerSearch}
		return cli.ledger(ctx, filter, cli.wantJSON(*ledgerJSON))
	case "stats":
		if err := cli.parse(statsCmd, args[2:]); err != nil {
			return err
		}
		return cli.stats(ctx, cli.wantJSON(*statsJSON))
	case "remind":
		if err := cli.parse(remindCmd, args[2:]); err != nil {
			return err
		}
		return cli.remind(ctx, *remindDryRun, cli.wantJSON(*remindJSON))
	case "createdb":
		return createDBFunc(cli.conf)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (cli *commandLine) ledger(ctx context.Context, filter ledger.Filter, asJSON bool) error {
	summaries, err := cli.ledgerSvc.Summaries(ctx, filter)
	if err != nil {
		return err
	}
	if asJSON {
		return cli.printJSON(summaries)
	}

	now := ledger.NowFunc()
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(w, "CODE\tNAME\tFEES\tPAYMENTS\tBILLED\tPAID\tBALANCE (%s)\tDUE\tDAYS\tSTATUS\t\n", cli.conf.Ledger.Currency)
	for _, s := range summaries {
		days := ""
		if s.DueDate.Valid {
			days = strconv.Itoa(s.DaysUntilDue(now))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.StudentCode,
			s.StudentName,
			s.AssignmentCount,
			s.PaymentCount,
			s.TotalAmount.StringFixed(2),
			s.TotalPaid.StringFixed(2),
			s.Balance.StringFixed(2),
			dueDateCell(s),
			days,
			s.Status,
		)
	}
	return w.Flush()
}

// dueDateCell is the due date column of the ledger table, "-" when there is none.
func dueDateCell(s ledger.Summary) string {
	if d := ledger.FormatDate(s.DueDate); d != "" {
		return d
	}
	return "-"
}

func (cli *commandLine) stats(ctx context.Context, asJSON bool) error {
	stats, err := cli.ledgerSvc.Stats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return cli.printJSON(stats)
	}

	cur := cli.conf.Ledger.Currency
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Students\t%d\n", stats.Students)
	_, _ = fmt.Fprintf(w, "With balance\t%d\n", stats.StudentsWithBalance)
	_, _ = fmt.Fprintf(w, "Billed\t%s %s\n", cur, stats.Billed.StringFixed(2))
	_, _ = fmt.Fprintf(w, "Collected\t%s %s\n", cur, stats.Collected.StringFixed(2))
	_, _ = fmt.Fprintf(w, "Outstanding\t%s %s\n", cur, stats.Outstanding.StringFixed(2))
	_, _ = fmt.Fprintf(w, "Collection rate\t%s%%\n", stats.CollectionRate.StringFixed(2))
	for _, st := range ledger.SummaryStatuses {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", st, stats.ByStatus[st])
	}
	return w.Flush()
}

func (cli *commandLine) remind(ctx context.Context, dryRun, asJSON bool) error {
	report, err := cli.ledgerSvc.SendReminders(ctx, dryRun)
	if err != nil {
		return err
	}
	if asJSON {
		return cli.printJSON(report)
	}

	verb := "sent"
	if dryRun {
		verb = "would be sent"
	}
	_, _ = fmt.Fprintf(cli.out, "batch %s: %d reminder(s) %s\n", report.BatchID, len(report.Sent), verb)
	if len(report.Sent) > 0 {
		_, _ = fmt.Fprintf(cli.out, "  reminded: %s\n", strings.Join(report.Sent, ", "))
	}
	if len(report.Skipped) > 0 {
		_, _ = fmt.Fprintf(cli.out, "  skipped (no guardian email): %s\n", strings.Join(report.Skipped, ", "))
	}
	return nil
}
