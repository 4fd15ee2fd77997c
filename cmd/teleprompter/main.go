package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zhaorenjie77/smart-teleprompter/internal/app"
	"github.com/zhaorenjie77/smart-teleprompter/internal/config"
	"github.com/zhaorenjie77/smart-teleprompter/internal/db"
	"github.com/zhaorenjie77/smart-teleprompter/internal/matcher"
	"github.com/zhaorenjie77/smart-teleprompter/internal/recognition"
	"github.com/zhaorenjie77/smart-teleprompter/internal/upload"
)

// env holds what every subcommand needs once flags are parsed.
type env struct {
	v      *viper.Viper
	cfg    config.Config
	store  *db.Store
	logger *log.Logger
	closer io.Closer
}

func (e *env) setup(cmd *cobra.Command, args []string) error {
	store, err := db.Open(e.v.GetString(config.KeySettingsDB))
	if err != nil {
		return err
	}
	e.store = store

	if err := config.Load(e.v, store); err != nil {
		return err
	}
	e.cfg = config.Resolve(e.v)

	logger, closer, err := config.NewLogger(e.cfg)
	if err != nil {
		return err
	}
	e.logger, e.closer = logger, closer
	return nil
}

func (e *env) teardown(cmd *cobra.Command, args []string) error {
	if e.closer != nil {
		e.closer.Close()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	e := &env{v: config.New()}

	rootCmd := &cobra.Command{
		Use:                "teleprompter",
		Short:              "Teleprompter that follows your speech",
		Long:               `Teleprompter shows a speech outline and highlights the segment you are speaking, matched live against the script by the backend.`,
		SilenceUsage:       true,
		PersistentPreRunE:  e.setup,
		PersistentPostRunE: e.teardown,
	}

	rootCmd.PersistentFlags().String("backend-url", config.DefaultBackendURL, "Backend base URL")
	rootCmd.PersistentFlags().String("locale", config.DefaultLocale, "Recognition locale")
	rootCmd.PersistentFlags().String("device", "", "Capture device name")
	rootCmd.PersistentFlags().
		String("daemon-socket", e.v.GetString(config.KeyDaemonSocket), "Speech daemon socket path")
	rootCmd.PersistentFlags().
		String("settings-db", e.v.GetString(config.KeySettingsDB), "Settings database path")
	rootCmd.PersistentFlags().String("log-file", e.v.GetString(config.KeyLogFile), "Log file path")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level")

	// Bind flags to viper
	e.v.BindPFlag(db.KeyBackendURL, rootCmd.PersistentFlags().Lookup("backend-url"))
	e.v.BindPFlag(db.KeyLocale, rootCmd.PersistentFlags().Lookup("locale"))
	e.v.BindPFlag(db.KeyDevice, rootCmd.PersistentFlags().Lookup("device"))
	e.v.BindPFlag(config.KeyDaemonSocket, rootCmd.PersistentFlags().Lookup("daemon-socket"))
	e.v.BindPFlag(config.KeySettingsDB, rootCmd.PersistentFlags().Lookup("settings-db"))
	e.v.BindPFlag(config.KeyLogFile, rootCmd.PersistentFlags().Lookup("log-file"))
	e.v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newRunCmd(e))
	rootCmd.AddCommand(newOutlineCmd(e))
	rootCmd.AddCommand(newHealthCmd(e))
	rootCmd.AddCommand(newConfigCmd(e))
	return rootCmd
}

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Upload a script and start the teleprompter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := upload.NewClient(e.cfg.BackendURL).UploadScript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			url, err := matcher.WebSocketURL(e.cfg.BackendURL)
			if err != nil {
				return err
			}
			e.logger.Info("script loaded", "path", args[0], "segments", len(items), "url", url)

			rec := &recognition.DaemonRecognizer{
				SocketPath: e.cfg.DaemonSocket,
				Locale:     e.cfg.Locale,
				Device:     e.cfg.Device,
				Logger:     e.logger,
			}
			src := recognition.NewSource(rec, recognition.WithLogger(e.logger))
			defer src.Stop()

			model := app.New(app.Options{
				Source:         src,
				URL:            url,
				Title:          filepath.Base(args[0]),
				Outline:        items,
				Logger:         e.logger,
				SessionOptions: []matcher.Option{matcher.WithLogger(e.logger)},
			})

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run teleprompter: %w", err)
			}
			return nil
		},
	}
}

func newOutlineCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <script>",
		Short: "Upload a script and print its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := upload.NewClient(e.cfg.BackendURL).UploadScript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No segments.")
				return nil
			}

			table := newTable(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Segment"})
			for _, item := range items {
				table.Append([]string{strconv.Itoa(item.ID), item.Text})
			}
			table.Render()
			return nil
		},
	}
}

func newHealthCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := upload.NewClient(e.cfg.BackendURL).Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", e.cfg.BackendURL)
			return nil
		},
	}
}

func newConfigCmd(e *env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := e.store.Get(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.v.GetString(args[0]))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.store.Set(args[0], args[1]); err != nil {
				return err
			}
			e.logger.Info("setting stored", "key", args[0])
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.store.Unset(args[0])
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := e.store.All()
			if err != nil {
				return err
			}
			if len(settings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No settings stored.")
				return nil
			}

			table := newTable(cmd.OutOrStdout())
			table.SetHeader([]string{"Key", "Value", "Updated At"})
			for _, s := range settings {
				table.Append([]string{s.Key, s.Value, s.UpdatedAt.Format("2006-01-02 15:04:05")})
			}
			table.Render()
			return nil
		},
	})

	return configCmd
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
