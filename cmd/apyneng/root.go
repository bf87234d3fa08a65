package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"apyneng/internal/config"
	"apyneng/internal/course"
	"apyneng/internal/logging"
	"apyneng/internal/selector"
)

const version = "1.1.0"

const longHelp = `Run the tests of tasks TASKS. By default every test of the chapter runs.

These flags do not run tests:
  apyneng --docs                  Show the apyneng documentation
  apyneng --test-token            Check the GitHub token
  apyneng --save-all              Save every changed file of the current directory on GitHub
  apyneng --update                Update every task and test of the current directory
  apyneng --update --test-only    Update only the tests
  apyneng 1,2 --update            Update tasks 1 and 2 and their tests
  apyneng --update-chapters 4-5   Update chapters 4 and 5 (directories are replaced)

Running tests, answers, submitting for review:
  apyneng              run every test of the current chapter
  apyneng 1,2a,5       run the tests of tasks 1, 2a and 5
  apyneng 1,2*         task 1 and every variant of task 2
  apyneng 1,3-5        tasks 1, 3, 4 and 5
  apyneng 1-5 -c       run the tests and submit the tasks that passed
  apyneng 1-5 -c --all also push every change of the current directory
  apyneng 1-5 -a       copy the answers of the tasks that passed

More in the documentation: apyneng --docs`

// environment is what a command invocation reads from the process.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cwd    func() (string, error)
	home   func() (string, error)
	// interactive enables y/n prompts; otherwise every question is answered yes.
	interactive bool
	// prepare lets callers replace collaborators before dispatch.
	prepare func(*app)
}

func processEnvironment() environment {
	return environment{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		cwd:         workingDir,
		home:        os.UserHomeDir,
		interactive: isTTY(),
	}
}

func newRootCommand(env environment, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apyneng [TASKS]",
		Short:         "Run, update and submit advpyneng course tasks",
		Long:          longHelp,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, env, opts, args)
		},
	}
	cmd.SetIn(env.stdin)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitCodeError{Code: exitUsage, Err: err}
	})

	flags := cmd.Flags()
	flags.BoolVarP(&opts.check, "check", "c", false, "submit the tasks that pass their tests for review; tracebacks are hidden")
	flags.BoolVar(&opts.docs, "docs", false, "show the apyneng documentation")
	flags.BoolVar(&opts.testToken, "test-token", false, "check the GitHub token")
	flags.BoolVar(&opts.saveAll, "save-all", false, "save every changed file of the current directory on GitHub")
	flags.BoolVar(&opts.update, "update", false, "update tasks and tests")
	flags.BoolVar(&opts.testOnly, "test-only", false, "with --update, update the tests only")
	flags.StringVar(&opts.updateChapters, "update-chapters", "", "replace every task and test of the selected chapters")
	flags.BoolVarP(&opts.disableVerbose, "disable-verbose", "d", false, "short pytest output")
	flags.BoolVar(&opts.debug, "debug", false, "show the full error chain")
	flags.StringVarP(&opts.branch, "default-branch", "b", config.DefaultBranch, "branch to push to")
	flags.BoolVar(&opts.addAll, "all", false, "git add . when submitting and save every change")
	flags.BoolVar(&opts.ignoreTLS, "ignore-ssl-cert", false, "do not verify the GitHub API certificate")
	flags.BoolVarP(&opts.answer, "answer", "a", false, "copy the answers of the tasks that passed the tests")
	flags.StringVar(&opts.configFile, "config", "", "read configuration from this file instead of searching for apyneng.yaml")
	return cmd
}

func runRoot(cmd *cobra.Command, env environment, opts *options, args []string) error {
	tasksArg := selector.AllTasks
	if len(args) > 0 {
		tasksArg = strings.Join(args, ",")
	}

	cwd, err := env.cwd()
	if err != nil {
		return err
	}
	home, err := env.home()
	if err != nil {
		return err
	}
	manifest, err := course.Default()
	if err != nil {
		return err
	}

	var overrides config.Overrides
	if cmd.Flags().Changed("default-branch") {
		overrides.DefaultBranch = &opts.branch
	}
	if cmd.Flags().Changed("ignore-ssl-cert") {
		overrides.IgnoreTLS = &opts.ignoreTLS
	}
	if opts.debug {
		level := "debug"
		overrides.LogLevel = &level
	}
	loadOpts := []config.Option{
		config.WithHomeDir(func() (string, error) { return home, nil }),
		config.WithSearchDirs(cwd),
		config.WithOverrides(overrides),
	}
	if opts.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(opts.configFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, env.stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	a := &app{
		opts:     *opts,
		tasksArg: tasksArg,
		cwd:      cwd,
		home:     home,
		manifest: manifest,
		cfg:      cfg,
		stdout:   env.stdout,
		logger:   logger,
	}
	a.docs = func(out io.Writer) error { return showDocs(out, env.interactive) }
	if env.interactive {
		a.confirm = promptConfirm(io.NopCloser(env.stdin), nopWriteCloser{env.stdout})
	}
	if env.prepare != nil {
		env.prepare(a)
	}
	return a.run(cmd.Context())
}

// newLogger logs to stderr at the configured level and, when a log file is
// configured, tees every record to it as JSON.
func newLogger(cfg config.Config, stderr io.Writer) (logging.Logger, func(), error) {
	console := logging.New(logging.Config{Level: cfg.LogLevel, Output: stderr})
	if cfg.LogFile == "" {
		return console, func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := logging.New(logging.Config{Level: "debug", Format: "json", Output: f})
	return logging.Multi(console, file), func() { _ = f.Close() }, nil
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, env environment) int {
	var opts options
	cmd := newRootCommand(env, &opts)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return reportError(env.stderr, err, opts.debug)
}
