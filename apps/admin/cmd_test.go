package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
	"github.com/academia-hq/academia/core/user"
	"github.com/academia-hq/academia/storage/database"
	testutil "github.com/academia-hq/academia/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	t.Helper()

	env := testutil.NewEnv(t)
	cli := newCommandLine(env.Conf, core.NewNopLogger())
	cli.validate = env.Validate
	cli.translator = env.Translator
	cli.svcs = env.Svcs
	return cli, env
}

// execute runs the CLI with args, feeding pwds to the password prompts.
func execute(cli *commandLine, args []string, pwds ...string) (string, error) {
	cli.readPassword = func(fd int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}

	var out bytes.Buffer
	root := cli.rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()

	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	_, err := execute(cli, []string{"migrate", "up"})
	assert.Equal(t, errNoDatabase, err)

	var ran []string
	cli.migrator, err = database.NewMigrator(func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "down", "redo", "reset", "status", "version":
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s)"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(cli, tt.args)
			tt.check(t, err)
		})
	}
	assert.Equal(t, []string{"up", "up-to", "down-to", "status"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)

	testutil.CreateUser(t, env.Repos.User, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no name", args: []string{"adduser", "--username", "boss"}, wantErrStr: `required flag(s) "name" not set`},
		{name: "no login", args: []string{"adduser", "--name", "Boss"}, wantErrStr: "one of --username or --email is required"},
		{name: "no password", args: []string{"adduser", "--name", "Boss", "--username", "boss"}, wantErrStr: "password is required"},
		{
			name: "passwords differ", args: []string{"adduser", "--name", "Boss", "--username", "boss"},
			pwds: []string{"LolC@t123", "LolC@t321"}, wantErrStr: "passwords do not match",
		},
		{
			name: "username taken", args: []string{"adduser", "--name", "Boss", "--username", "AWE"},
			pwds: []string{"LolC@t123", "LolC@t123"}, wantErrStr: "username",
		},
		{
			name: "unknown role", args: []string{"adduser", "--name", "Boss", "--username", "boss", "--role", "king"},
			pwds: []string{"LolC@t123", "LolC@t123"}, wantErrStr: "roles",
		},
		{
			name: "owner", args: []string{"adduser", "--name", "Boss", "--username", "Boss", "--email", "boss@test.cd", "--role", user.RoleAdminOwner},
			pwds: []string{"LolC@t123", "LolC@t123"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(cli, tt.args, tt.pwds...)
			tt.check(t, err)
		})
	}

	boss, err := env.Svcs.User.GetByUsernameOrEmail(context.Background(), "boss@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "boss", boss.Username)
	assert.True(t, boss.IsOwner())
	assert.NoError(t, boss.CheckPassword("LolC@t123"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.Repos.User, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErrStr: "accepts 1 arg(s), received 0"},
		{name: "no password", args: []string{"resetpassword", "awe"}, wantErrStr: "password is required"},
		{name: "user not found", args: []string{"resetpassword", "lol"}, pwds: []string{"N3w-P@ssword", "N3w-P@ssword"}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "awe"}, pwds: []string{"lol", "lol"}, wantErrStr: "password: password must contain at least"},
		{name: "reset with username", args: []string{"resetpassword", "awe"}, pwds: []string{"N3w-P@ssword", "N3w-P@ssword"}},
		{name: "reset with email", args: []string{"resetpassword", "AWE@test.cd"}, pwds: []string{"An0ther#Pwd", "An0ther#Pwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(cli, tt.args, tt.pwds...)
			tt.check(t, err)
		})
	}

	refreshed, err := env.Svcs.User.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword("An0ther#Pwd"))
}

func Test_commandLine_seedPermissions(t *testing.T) {
	cli, _ := setup(t)

	out, err := execute(cli, []string{"seedpermissions"})
	require.NoError(t, err)
	assert.Equal(t, "4 permission template(s) created\n", out)

	out, err = execute(cli, []string{"seedpermissions"})
	require.NoError(t, err)
	assert.Equal(t, "0 permission template(s) created\n", out)
}

func Test_commandLine_syncSubjects(t *testing.T) {
	cli, env := setup(t)
	school := testutil.NewSchool(t, env, "KIN")
	testutil.AddSubject(t, env, school.Program, "BIO", 1, 1)

	tests := []cliTest{
		{name: "no scope", args: []string{"syncsubjects"}, wantErrStr: "one of --program or --class is required"},
		{
			name: "both scopes", args: []string{"syncsubjects", "--program", school.Program.ID, "--class", school.Class.ID},
			wantErrStr: "mutually exclusive",
		},
		{name: "unknown class", args: []string{"syncsubjects", "--class", core.NewID()}, wantErrStr: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(cli, tt.args)
			tt.check(t, err)
		})
	}

	out, err := execute(cli, []string{"syncsubjects", "--class", school.Class.ID})
	require.NoError(t, err)
	assert.Equal(t, school.Class.ID+": added [BIO] updated [] removed [] retained []\n", out)

	out, err = execute(cli, []string{"syncsubjects", "--program", school.Program.ID})
	require.NoError(t, err)
	assert.Equal(t, school.Class.ID+": up to date\n", out)
}

func Test_commandLine_ingest(t *testing.T) {
	cli, env := setup(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "policies"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.txt"), []byte("Be on time.\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policies", "uniform.md"), []byte("# Uniform\nWorn every day.\n"), 0o600))

	out, err := execute(cli, []string{"ingest", dir})
	require.NoError(t, err)
	assert.Contains(t, out, "uniform.md")
	assert.Contains(t, out, knowledge.StatusReady)

	docs, err := env.Svcs.Knowledge.Query(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	out, err = execute(cli, []string{"ingest", filepath.Join(dir, "rules.txt"), filepath.Join(dir, "missing.txt")})
	assert.EqualError(t, err, "1 of 2 file(s) failed")
	assert.Contains(t, out, "duplicate")

	_, err = execute(cli, []string{"ingest"})
	assert.Error(t, err)
}
