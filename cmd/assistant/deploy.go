package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/aiwebengine"
)

const (
	defaultDeployServer = "http://localhost:4000"
	deployTimeout       = 30 * time.Second
	// settleDelay lets an editor finish writing before the file is read.
	settleDelay = 100 * time.Millisecond
)

// deployOptions holds the parsed deploy flags.
type deployOptions struct {
	URI         string
	File        string
	Server      string
	Watch       bool
	Token       string
	PromptToken bool
}

func parseDeployFlags(args []string) (deployOptions, error) {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	var opts deployOptions
	fs.StringVar(&opts.URI, "uri", "", "URI of the script (e.g. https://example.com/my-script)")
	fs.StringVar(&opts.File, "file", "", "path of the JavaScript file to deploy")
	fs.StringVar(&opts.Server, "server", defaultDeployServer, "aiwebengine server URL")
	fs.BoolVar(&opts.Watch, "watch", true, "redeploy when the file changes")
	fs.StringVar(&opts.Token, "token", os.Getenv("AIWEBENGINE_TOKEN"), "bearer token for the server")
	fs.BoolVar(&opts.PromptToken, "prompt-token", false, "read the bearer token from the terminal")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.URI == "" || opts.File == "" {
		fs.Usage()
		return opts, errors.New("--uri and --file are required")
	}
	return opts, nil
}

// runDeploy uploads a script and, unless --watch=false, keeps redeploying it
// on every change until interrupted. Only read and transport failures of the
// initial upload are returned; a status rejected by the server is printed.
func runDeploy(args []string) error {
	opts, err := parseDeployFlags(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(opts.File); err != nil {
		return fmt.Errorf("file '%s' does not exist", opts.File)
	}

	if opts.PromptToken {
		opts.Token, err = promptToken()
		if err != nil {
			return err
		}
	}

	d := &deployer{
		client: aiwebengine.NewClient(opts.Server, opts.Token, deployTimeout),
		server: opts.Server,
		uri:    opts.URI,
		file:   opts.File,
		out:    os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.deploy(ctx); err != nil {
		return fmt.Errorf("initial deployment failed: %w", err)
	}

	if !opts.Watch {
		fmt.Fprintln(d.out, "One-time deployment completed. Exiting.")
		return nil
	}

	fmt.Fprintln(d.out, "Watching for file changes... (Press Ctrl+C to stop)")
	return d.watch(ctx)
}

func promptToken() (string, error) {
	fmt.Fprint(os.Stderr, "Token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // fd is int on all platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(raw), nil
}

// deployer pushes one local file to one script URI.
type deployer struct {
	client *aiwebengine.Client
	server string
	uri    string
	file   string
	out    io.Writer
}

func (d *deployer) deploy(ctx context.Context) error {
	content, err := os.ReadFile(d.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.file, err)
	}

	fmt.Fprintf(d.out, "Deploying %s to %s/api/scripts/%s\n", d.file, d.server, d.uri)
	err = d.client.UpsertScript(ctx, d.uri, string(content))
	var apiErr *aiwebengine.APIError
	switch {
	case err == nil:
		fmt.Fprintf(d.out, "Successfully deployed script: %s\n", d.uri)
	case errors.As(err, &apiErr):
		// A rejected script is reported but is not a deployer failure.
		fmt.Fprintf(d.out, "Failed to deploy script: %s (Status: %d)\n", d.uri, apiErr.StatusCode)
		if apiErr.Body != "" {
			fmt.Fprintf(d.out, "Error details: %s\n", apiErr.Body)
		}
	default:
		fmt.Fprintf(d.out, "Failed to deploy script: %s (%v)\n", d.uri, err)
		return err
	}
	return nil
}

// watch redeploys on every write or create of the file until ctx ends. The
// parent directory is watched so that editors replacing the file by rename
// keep triggering events.
func (d *deployer) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	abs, err := filepath.Abs(d.file)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", d.file, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", d.file, err)
	}

	return d.loop(ctx, abs, w.Events, w.Errors)
}

func (d *deployer) loop(ctx context.Context, target string, events <-chan fsnotify.Event, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !d.matches(target, ev) {
				continue
			}
			fmt.Fprintln(d.out, "File changed, redeploying...")
			time.Sleep(settleDelay)
			if err := d.deploy(ctx); err != nil {
				slog.Error("redeployment failed", "file", d.file, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			slog.Error("watch error", "file", d.file, "error", err)
		}
	}
}

func (d *deployer) matches(target string, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return name == target
}
