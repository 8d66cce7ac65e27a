package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/quire/internal"
	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/export"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/render"
)

// withManager runs fn against a manager opened from the command's config.
// One-shot commands log as text on stderr so stdout stays clean for output.
// Commands that change the collection fail when their changes were not saved;
// a damaged store alone never fails a read-only command.
func withManager(cmd *cli.Command, mutates bool, fn func(m *noteservice.Manager, out io.Writer) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, false)
	slog.SetDefault(logger)

	m, provider, err := internal.OpenManager(cfg, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := fn(m, cmd.Root().Writer); err != nil {
		return err
	}
	// Mutations never fail loudly; surface the last save error here.
	if err := m.LastError(); mutates && errors.Is(err, apperr.ErrSave) {
		return err
	}
	return nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export one note as markdown, or every note as a zip archive",
		ArgsUsage: "[note-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(cmd, false, func(m *noteservice.Manager, out io.Writer) error {
				var (
					path string
					err  error
				)
				if id := cmd.Args().First(); id != "" {
					path, err = m.ExportNote(id)
				} else {
					path, err = m.ExportAll()
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, path)
				return err
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import text files, or every matching file under a directory",
		ArgsUsage: "<file-or-dir>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pattern",
				Usage: "Glob applied inside directories",
				Value: export.DefaultImportPattern,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return errors.New("import: at least one path is required")
			}
			return withManager(cmd, true, func(m *noteservice.Manager, out io.Writer) error {
				var errs []error
				for _, p := range paths {
					info, err := os.Stat(p)
					if err != nil {
						errs = append(errs, fmt.Errorf("import %s: %w", p, err))
						continue
					}
					var notes []models.Note
					if info.IsDir() {
						notes, err = m.ImportDir(p, cmd.String("pattern"))
					} else {
						var n models.Note
						if n, err = m.ImportNote(p); err == nil {
							notes = []models.Note{n}
						}
					}
					for _, n := range notes {
						fmt.Fprintf(out, "%s\t%s\n", n.ID, n.DisplayTitle())
					}
					if err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "List notes, or render one note in the terminal",
		ArgsUsage: "[note-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "width",
				Usage: "Word wrap width",
				Value: 80,
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Fuzzy filter for the note list",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(cmd, false, func(m *noteservice.Manager, out io.Writer) error {
				id := cmd.Args().First()
				if id == "" {
					for _, n := range m.Filter(cmd.String("filter")) {
						pin := " "
						if n.IsPinned {
							pin = "*"
						}
						fmt.Fprintf(out, "%s %s  %s  %s\n", pin, n.ID, n.Date.Format("2006-01-02 15:04"), n.DisplayTitle())
					}
					return nil
				}
				n, ok := m.Get(id)
				if !ok {
					return fmt.Errorf("show: note %s not found", id)
				}
				rendered, err := render.Terminal("# "+n.DisplayTitle()+"\n\n"+n.Content, int(cmd.Int("width")))
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, rendered)
				return err
			})
		},
	}
}

func onboardingCommand() *cli.Command {
	return &cli.Command{
		Name:  "onboarding",
		Usage: "Print or set the onboarding-completed flag",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "complete", Usage: "Mark onboarding as completed"},
			&cli.BoolFlag{Name: "reset", Usage: "Clear the onboarding flag"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("complete") && cmd.Bool("reset") {
				return errors.New("onboarding: --complete and --reset are exclusive")
			}
			return withManager(cmd, false, func(m *noteservice.Manager, out io.Writer) error {
				switch {
				case cmd.Bool("complete"):
					if err := m.SetOnboardingCompleted(true); err != nil {
						return err
					}
				case cmd.Bool("reset"):
					if err := m.SetOnboardingCompleted(false); err != nil {
						return err
					}
				}
				done, err := m.OnboardingCompleted()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, done)
				return err
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve note tools over MCP on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(cmd, false, func(m *noteservice.Manager, _ io.Writer) error {
				return mcpserver.New(m, version).ServeStdio()
			})
		},
	}
}
