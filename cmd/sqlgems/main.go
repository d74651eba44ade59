// Package main provides the sqlgems command line compiler.
package main

import (
	"context"
	"io"
	"os"

	"github.com/dukex/sqlgems/pkg/cmd"
	"github.com/dukex/sqlgems/pkg/log"
	"github.com/dukex/sqlgems/pkg/services"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace/noop"
)

func newCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	fileFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Compile document {graph, component, previous?} (- for stdin)",
			Required: true,
		}
	}

	documentAction := func(run func(context.Context, io.Writer, *services.Compiler, services.Document) error) cli.ActionFunc {
		return func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("sqlgems")

			reg, err := cmd.NewRegistry(ctx, logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			doc, err := readDocument(command.String("file"), stdin)
			if err != nil {
				return err
			}

			compiler := services.NewCompiler(reg, noop.NewTracerProvider().Tracer("sqlgems"))

			return run(ctx, stdout, compiler, doc)
		}
	}

	return &cli.Command{
		Name:                  "sqlgems",
		Usage:                 "Compile gem components offline",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing gem plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "gems",
				Usage: "List the registered gems",
				Action: func(ctx context.Context, command *cli.Command) error {
					reg, err := cmd.NewRegistry(ctx, log.WithModule("sqlgems"), command.String("plugins-path"))
					if err != nil {
						return err
					}

					return runGems(stdout, reg)
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Refresh the derived properties of a component against its graph",
				Flags:  []cli.Flag{fileFlag()},
				Action: documentAction(runReconcile),
			},
			{
				Name:   "validate",
				Usage:  "Print the diagnostics of a reconciled component",
				Flags:  []cli.Flag{fileFlag()},
				Action: documentAction(runValidate),
			},
			{
				Name:   "emit",
				Usage:  "Print the code generated for a reconciled component",
				Flags:  []cli.Flag{fileFlag()},
				Action: documentAction(runEmit),
			},
		},
	}
}

func main() {
	err := newCommand(os.Stdin, os.Stdout).Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("sqlgems").Error("Command failed", "error", err)
		os.Exit(1)
	}
}
