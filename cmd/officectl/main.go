// Command officectl signs a user in against the office access stack and
// prints what the session resolves to.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/internal/app"
	"github.com/lexdesk/officeauth/internal/config"
	"github.com/lexdesk/officeauth/internal/infrastructure/credentials"
	"github.com/lexdesk/officeauth/internal/services/lifecycle"
	"github.com/lexdesk/officeauth/pkg/logger"
	"github.com/lexdesk/officeauth/usecase"
	"github.com/lexdesk/officeauth/usecase/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("officectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	account := fs.String("account", "", "credentials account name (default $OFFICECTL_ACCOUNT)")
	credsPath := fs.String("credentials", "", "credentials file (default $OFFICECTL_CREDENTIALS)")
	logLevel := fs.String("log-level", "warn", "log level written to stderr")

	dispatcher := usecase.NewDispatcher()
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: officectl [flags] <command> [command flags]")
		fmt.Fprintln(stderr, "\ncommands:")
		dispatcher.Usage(stderr)
		fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}

	// Commands are registered before parsing so -h lists them.
	var client lazyClient
	registerCommands(dispatcher, &client, stdin)

	if err := fs.Parse(args); err != nil {
		return exitCode(err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, commandArgs := fs.Arg(0), fs.Args()[1:]
	if !dispatcher.Has(command) {
		fmt.Fprintf(stderr, "officectl: unknown command %q\n", command)
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	// Schema changes belong to the server.
	cfg.Migrations.Enabled = false
	if *account != "" {
		cfg.CLI.Account = *account
	}
	if *credsPath != "" {
		cfg.CLI.CredentialsPath = *credsPath
	}

	zapLogger, err := logger.New(logger.Config{Level: *logLevel, Encoding: "console", Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %v\n", err)
		return 1
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			zapLogger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	application, err := app.Build(ctx, cfg, zapLogger, manager)
	if err != nil {
		fmt.Fprintf(stderr, "officectl: %v\n", err)
		return 1
	}
	// Flush writes that failed during this run while the stores are still open.
	manager.Register("buffer_drain", func(ctx context.Context) error {
		return application.Processor.Drain(ctx)
	})

	store, err := credentials.Open(cfg.CLI.CredentialsPath, cfg.CLI.Account)
	if err != nil {
		fmt.Fprintf(stderr, "officectl: %v\n", err)
		return 1
	}
	manager.Register("credentials", func(context.Context) error {
		return store.Close()
	})

	resolver := application.NewResolver(session.WithTokenStore(store))
	resolver.Initialize(ctx)
	manager.Register("session_resolver", func(context.Context) error {
		resolver.Close()
		return nil
	})
	client.Resolver = resolver

	out, err := dispatcher.Execute(ctx, command, commandArgs)
	if err != nil {
		fmt.Fprintf(stderr, "officectl %s: %v\n", command, err)
		return exitCode(err)
	}
	if err := printJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "officectl: %v\n", err)
		return 1
	}
	return 0
}

// lazyClient lets commands be registered before the stack is connected.
type lazyClient struct {
	*session.Resolver
}
