// Command certmill generates personalized event certificates from a .pptx
// template and a CSV roster, renders each filled deck to images, and emails
// the certificate to the corresponding recipient.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	emailPkg "certmill/internal/adapters/email"
	"certmill/internal/adapters/render"
	"certmill/internal/adapters/storage"
	deliveryStore "certmill/internal/adapters/storage/deliverylog"
	"certmill/internal/application/orchestrators"
	"certmill/internal/config"
	"certmill/internal/domain/roster"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "certmill",
		Short:         "Batch certificate generator and mailer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newPreviewCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		templatePath string
		rosterPath   string
		eventName    string
		emailColumn  string
		outputDir    string
		rowTimeout   time.Duration
		dryRun       bool
		resume       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fill, render, and email a certificate for every roster row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if emailColumn != "" {
				cfg.EmailColumn = emailColumn
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}

			ro, err := loadRosterFile(rosterPath)
			if err != nil {
				return err
			}

			db, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			renderer, closeRenderer, err := buildRenderer(cfg, dryRun)
			if err != nil {
				return err
			}
			defer closeRenderer()

			sender, err := buildSender(cfg, dryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := orchestrators.ExecuteRunBatch(ctx, orchestrators.RunBatchInput{
				TemplatePath: templatePath,
				Rows:         ro.Rows,
				EventName:    eventName,
				EmailColumn:  cfg.EmailColumn,
				OutputDir:    cfg.OutputDir,
				RowTimeout:   rowTimeout,
				Resume:       resume,
			}, orchestrators.RunBatchDeps{
				Renderer:    renderer,
				Sender:      sender,
				DeliveryLog: deliveryStore.NewSQLiteStore(db),
				GenerateID:  func() string { return uuid.New().String() },
				Now:         time.Now,
				OnProgress: func(done, total int, rowName string) {
					fmt.Printf("[%3d%%] %s (%d/%d)\n", done*100/total, rowName, done, total)
				},
			})

			printSummary(result.Sent, result.Total, result.Failed, result.Skipped)
			for _, f := range result.Failures() {
				fmt.Printf("  row %d (%s): %s\n", f.Index+1, f.Name, f.FailureReason)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "path to .pptx template (required)")
	cmd.Flags().StringVarP(&rosterPath, "roster", "r", "", "path to roster CSV (required)")
	cmd.Flags().StringVarP(&eventName, "event", "e", "", "event name (required)")
	cmd.Flags().StringVar(&emailColumn, "email-column", "", "roster column holding recipient addresses (default EMAIL)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory root")
	cmd.Flags().DurationVar(&rowTimeout, "row-timeout", 2*time.Minute, "per-row timeout for render and send (0 disables)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render placeholders and log sends without LibreOffice or email delivery")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip recipients already marked sent for this event")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("roster")
	cmd.MarkFlagRequired("event")
	return cmd
}

func newPreviewCmd(configPath *string) *cobra.Command {
	var (
		templatePath string
		rosterPath   string
		rowName      string
		outDir       string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render one roster row's certificate without sending anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ro, err := loadRosterFile(rosterPath)
			if err != nil {
				return err
			}
			row, err := ro.FindByName(rowName)
			if err != nil {
				return err
			}

			renderer, closeRenderer, err := buildRenderer(cfg, dryRun)
			if err != nil {
				return err
			}
			defer closeRenderer()

			image, err := orchestrators.ExecutePreview(cmd.Context(), orchestrators.PreviewInput{
				TemplatePath: templatePath,
				Row:          row,
				OutDir:       outDir,
			}, orchestrators.PreviewDeps{Renderer: renderer})
			if err != nil {
				return err
			}
			fmt.Println(image)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "path to .pptx template (required)")
	cmd.Flags().StringVarP(&rosterPath, "roster", "r", "", "path to roster CSV (required)")
	cmd.Flags().StringVarP(&rowName, "name", "n", "", "NAME value of the row to preview (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "preview", "directory for the preview images")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write a placeholder image instead of driving LibreOffice")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("roster")
	cmd.MarkFlagRequired("name")
	return cmd
}

// loadRosterFile opens and parses the roster CSV.
func loadRosterFile(path string) (roster.Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer f.Close()
	return orchestrators.LoadRoster(f)
}

// openDB opens the delivery-log database with WAL mode and a busy timeout,
// and ensures the schema exists.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", storage.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildRenderer picks the renderer: a LibreOffice session, or the noop
// placeholder renderer for dry runs.
func buildRenderer(cfg config.Config, dryRun bool) (render.Renderer, func(), error) {
	if dryRun {
		return render.NewNoopRenderer(), func() {}, nil
	}
	session, err := render.NewSession(
		render.WithBinaries(cfg.Render.Soffice, cfg.Render.Pdftoppm),
		render.WithDPI(cfg.Render.DPI),
	)
	if err != nil {
		return nil, nil, err
	}
	return session, func() {
		if err := session.Close(); err != nil {
			log.Printf("render session close: %v", err)
		}
	}, nil
}

// buildSender picks the delivery provider from configuration.
func buildSender(cfg config.Config, dryRun bool) (emailPkg.Sender, error) {
	if dryRun {
		return emailPkg.NewNoopSender(), nil
	}
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.From == "" || cfg.SMTP.Password == "" {
			return nil, errors.New("smtp provider needs CERTMILL_SMTP_FROM and CERTMILL_SMTP_PASSWORD")
		}
		return emailPkg.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password), nil
	case "resend":
		if cfg.ResendAPIKey == "" || cfg.ResendFrom == "" {
			return nil, errors.New("resend provider needs CERTMILL_RESEND_API_KEY and CERTMILL_RESEND_FROM")
		}
		return emailPkg.NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom), nil
	case "noop":
		return emailPkg.NewNoopSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func printSummary(sent, total, failed, skipped int) {
	fmt.Printf("%d / %d certificates sent (%d skipped, %d failed)\n", sent, total, skipped, failed)
}
