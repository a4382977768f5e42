package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/usageadm/internal/consolidate"
	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/testutil"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (r cliResult) code() int {
	return ExitCode(r.err)
}

// runCLI executes the root command with a clean environment and flags reset
// to their defaults.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{"DATABASE_URL", "USAGEADM_DATABASE_URL", "USAGEADM_DATABASE_URL_FILE", "USAGEADM_ENGINE", "USAGEADM_LOG_LEVEL", "USAGEADM_LOG_FORMAT", "USAGEADM_BATCH_SIZE"} {
		t.Setenv(name, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { os.Chdir(wd) })

	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func seedDuplicates(t *testing.T, database *db.DB) {
	t.Helper()
	testutil.InsertAccount(t, database, 1, "prov-a", "ada@example.com", "key-a")
	testutil.InsertAccount(t, database, 2, "U04ABCDEFAB", "Ada@Example.com", "key-b")
	testutil.InsertAccount(t, database, 3, "prov-x", "", "key-x")
	testutil.InsertEvents(t, database, "prov-a", 20)
	testutil.InsertEvents(t, database, "U04ABCDEFAB", 2)
	testutil.InsertDependents(t, database, "prov-a")
}

func TestConsolidateCommand_JSON(t *testing.T) {
	database, path := testutil.TempDB(t)
	seedDuplicates(t, database)

	res := runCLI(t, "consolidate", "--db-url", path, "--engine", "sqlite", "--json")
	require.NoError(t, res.err, res.stderr)

	var report consolidate.MergeReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, 1, report.Merged)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "U04ABCDEFAB", report.Groups[0].IdentityID)
	require.Len(t, report.Problems, 1)
	assert.Equal(t, domain.ProblemMissingEmail, report.Problems[0].Reason)

	assert.Equal(t, "key-a", testutil.Credential(t, database, "U04ABCDEFAB"))
	assert.Zero(t, testutil.CountRows(t, database, domain.TableAccounts, "prov-a"))
}

func TestConsolidateCommand_HumanSummary(t *testing.T) {
	database, path := testutil.TempDB(t)
	seedDuplicates(t, database)

	res := runCLI(t, "consolidate", "--db-url", path, "--engine", "sqlite")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "Scanned 3 accounts, found 1 duplicate group")
	assert.Contains(t, res.stdout, "Merged 1, failed 0, skipped 0")
	assert.Contains(t, res.stdout, "U04ABCDEFAB")
	assert.Contains(t, res.stdout, "Needs manual review")
	assert.Contains(t, res.stdout, "missing_email")
}

func TestConsolidateCommand_DryRun(t *testing.T) {
	database, path := testutil.TempDB(t)
	seedDuplicates(t, database)

	res := runCLI(t, "consolidate", "--db-url", path, "--engine", "sqlite", "--dry-run")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "dry run, nothing written")
	assert.Contains(t, res.stdout, "--- current")
	assert.Contains(t, res.stdout, "+++ merged")
	assert.Equal(t, 1, testutil.CountRows(t, database, domain.TableAccounts, "prov-a"))
	assert.Equal(t, "key-b", testutil.Credential(t, database, "U04ABCDEFAB"))
}

func TestConsolidateCommand_ConflictingOutputFlags(t *testing.T) {
	res := runCLI(t, "consolidate", "--json", "--yaml")
	assert.Equal(t, exitUsage, res.code())
}

func TestCommand_UnknownFlagIsUsageError(t *testing.T) {
	res := runCLI(t, "consolidate", "--no-such-flag")
	assert.Equal(t, exitUsage, res.code())
}

func TestCommand_MissingDatabaseIsSetupError(t *testing.T) {
	res := runCLI(t, "consolidate")
	require.Error(t, res.err)
	assert.Equal(t, exitDB, res.code())
	assert.Contains(t, res.err.Error(), "no database configured")
}

func TestPurgeCommand_RequiresUser(t *testing.T) {
	res := runCLI(t, "purge")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code())
	assert.Contains(t, res.err.Error(), "--user is required")
}

func TestPurgeCommand_NotFound(t *testing.T) {
	_, path := testutil.TempDB(t)

	res := runCLI(t, "purge", "--db-url", path, "--engine", "sqlite", "--user", "missing")
	require.Error(t, res.err)
	assert.Equal(t, exitNotFound, res.code())
}

func TestPurgeCommand_DeletesWithProgress(t *testing.T) {
	database, path := testutil.TempDB(t)
	testutil.InsertAccount(t, database, 1, "X", "x@example.com", "key-x")
	testutil.InsertEvents(t, database, "X", 25)
	testutil.InsertDependents(t, database, "X")

	res := runCLI(t, "purge", "--db-url", path, "--engine", "sqlite", "--user", "X", "--batch-size", "10")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stderr, "batch 1: deleted 10 events of X (10 so far)")
	assert.Contains(t, res.stderr, "batch 3: deleted 5 events of X (25 so far)")
	assert.Contains(t, res.stdout, "Purged X: 25 events in 3 batches")
	assert.Zero(t, testutil.CountRows(t, database, domain.TableEvents, "X"))
	assert.Zero(t, testutil.CountRows(t, database, domain.TableAccounts, "X"))
}

func TestPurgeCommand_TrimsUser(t *testing.T) {
	database, path := testutil.TempDB(t)
	testutil.InsertAccount(t, database, 1, "X", "x@example.com", "key-x")
	testutil.InsertEvents(t, database, "X", 4)

	res := runCLI(t, "purge", "--db-url", path, "--engine", "sqlite", "--user", " X\t", "--quiet")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "Purged X: 4 events")
	assert.Zero(t, testutil.CountRows(t, database, domain.TableEvents, "X"))
	assert.Zero(t, testutil.CountRows(t, database, domain.TableAccounts, "X"))
}

func TestPurgeCommand_BlankUserIsUsageError(t *testing.T) {
	res := runCLI(t, "purge", "--user", "   ")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code())
}

func TestPurgeCommand_DryRunYAML(t *testing.T) {
	database, path := testutil.TempDB(t)
	testutil.InsertAccount(t, database, 1, "X", "x@example.com", "key-x")
	testutil.InsertEvents(t, database, "X", 7)

	res := runCLI(t, "purge", "--db-url", path, "--engine", "sqlite", "--user", "X", "--dry-run", "--yaml")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "heartbeats: 7")
	assert.NotContains(t, res.stdout, "key-x")
	assert.Equal(t, 7, testutil.CountRows(t, database, domain.TableEvents, "X"))
}

func TestVerifyCommand(t *testing.T) {
	database, path := testutil.TempDB(t)
	testutil.InsertAccount(t, database, 1, "U0000000001", "a@example.com", "key-1")

	res := runCLI(t, "verify", "--db-url", path, "--engine", "sqlite")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "All checks passed")

	testutil.InsertEvents(t, database, "gone", 3)
	res = runCLI(t, "verify", "--db-url", path, "--engine", "sqlite", "--json")
	require.Error(t, res.err)
	assert.Equal(t, exitFailed, res.code())

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "error", out["overall_status"])
}

func TestVersionCommand(t *testing.T) {
	res := runCLI(t, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "usageadm version dev")
}
