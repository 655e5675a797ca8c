package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/services/email"
	"github.com/trezcool/bursar/tests"
)

var now = time.Date(2023, 9, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	ledger.NowFunc = func() time.Time { return now }
	isTerminalFunc = func(int) bool { return true }
	t.Cleanup(func() { ledger.NowFunc = time.Now })

	conf := core.NewConfig()
	logger := testutil.NewLogger(conf)
	require.NoError(t, core.ParseEmailTemplates(logger, true))
	emailsvc.ResetSentMessages()

	// set up repo with a paid, an overdue & a pending student
	repo := testutil.PrepareRepo(t)
	due := func(d int) null.Time { return null.TimeFrom(now.AddDate(0, 0, d)) }

	alice := testutil.CreateStudent(t, repo, "STU-001", "Alice Banda", "banda@test.zm")
	testutil.CreateFeeAssignment(t, repo, alice, "Tuition", "5000", "5000", "0", due(-10))
	bwalya := testutil.CreateStudent(t, repo, "STU-002", "Bwalya Phiri", "phiri@test.zm")
	fa := testutil.CreateFeeAssignment(t, repo, bwalya, "Tuition", "5000", "0", "4500", due(-1))
	testutil.CreatePayment(t, repo, bwalya.Code, "2500", due(-5), fa.ID)
	chanda := testutil.CreateStudent(t, repo, "STU-003", "Chanda Mulenga", "")
	testutil.CreateFeeAssignment(t, repo, chanda, "Tuition", "1200", "0", "1200", due(30))

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		conf:      conf,
		ledgerSvc: ledger.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), logger, conf),
		out:       out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string // substrings
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			if err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"stats", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
		{name: "flag help", args: []string{"ledger", "-h"}, wantErr: errHelp},
	}
	runCLITests(t, cli, out, tests)
}

func Test_commandLine_ledger(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{
			name:    "table",
			args:    []string{"ledger"},
			wantOut: []string{"BALANCE (ZMW)", "STU-002", "Bwalya Phiri", "2000.00", "2023-09-14", "OVERDUE", "PENDING", "PAID"},
		},
		{name: "status", args: []string{"ledger", "-status", "pending"}, wantOut: []string{"STU-003", "30"}},
		{
			name:       "invalid status",
			args:       []string{"ledger", "-status", "lol"},
			wantErrStr: "status: status must be one of PAID, PARTIAL, PENDING or OVERDUE",
		},
	}
	runCLITests(t, cli, out, tests)

	t.Run("table order", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "ledger"}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[1], "STU-002")
		assert.Contains(t, lines[2], "STU-003")
		assert.Contains(t, lines[3], "STU-001")
	})

	t.Run("json", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "ledger", "-search", "chanda", "-json"}))

		var summaries []ledger.Summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, "STU-003", summaries[0].StudentCode)
		assert.Equal(t, ledger.StatusPending, summaries[0].Status)
	})

	t.Run("json when piped", func(t *testing.T) {
		isTerminalFunc = func(int) bool { return false }
		defer func() { isTerminalFunc = func(int) bool { return true } }()

		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "ledger", "-status", "PAID"}))
		assert.True(t, json.Valid(out.Bytes()))
	})
}

func Test_commandLine_stats(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{
			name:    "table",
			args:    []string{"stats"},
			wantOut: []string{"Students", "ZMW 11200.00", "ZMW 7500.00", "ZMW 3200.00", "66.96%"},
		},
		{name: "json", args: []string{"stats", "-json"}, wantOut: []string{`"collection_rate": "66.96"`, `"OVERDUE": 1`}},
	}
	runCLITests(t, cli, out, tests)
}

func Test_commandLine_remind(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "dry run", args: []string{"remind", "-dry-run"}, wantOut: []string{"1 reminder(s) would be sent", "reminded: STU-002"}},
		{name: "send", args: []string{"remind"}, wantOut: []string{"1 reminder(s) sent", "reminded: STU-002"}},
	}
	runCLITests(t, cli, out, tests)

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "phiri@test.zm", sent[0].To[0].Address)
}

func Test_commandLine_createdb(t *testing.T) {
	cli, out := setup(t)

	var called bool
	createDBFunc = func(conf *core.Config) error {
		called = true
		return nil
	}

	runCLITests(t, cli, out, []cliTest{{name: "createdb", args: []string{"createdb"}}})
	assert.True(t, called)
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "discount", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, out, tests)
}
