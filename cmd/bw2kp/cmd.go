package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/chirichan/rice"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chirichan/bw2kp/internal/bwcli"
	"github.com/chirichan/bw2kp/internal/convert"
	"github.com/chirichan/bw2kp/internal/entities"
	"github.com/chirichan/bw2kp/internal/keepass"
	"github.com/chirichan/bw2kp/version"
)

// Config comes from the environment (or a .env file); flags set explicitly
// on the command line override it.
type Config struct {
	BWSession        string `env:"BW_SESSION"`
	BWPath           string `env:"BW_PATH" envDefault:"bw"`
	DatabasePath     string `env:"DATABASE_PATH"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	DatabaseKeyfile  string `env:"DATABASE_KEYFILE"`
}

type Bw2kpCLI struct {
	Logger *slog.Logger
}

// Convert is the root command: pull folders, items and attachments from a
// live vault through bitwarden-cli and write them into the KeePass database.
func (m *Bw2kpCLI) Convert(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		fmt.Printf("bw2kp version is %s", version.Version)
		return nil
	}
	cfg, err := m.loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(cfg.BWPath); err != nil {
		return fmt.Errorf("bitwarden-cli not found, did you set BW_PATH correctly: %w", err)
	}
	if cfg.BWSession == "" {
		return fmt.Errorf("BW_SESSION is not set, run `bw unlock` first")
	}

	bw := &bwcli.Client{Path: cfg.BWPath, Session: cfg.BWSession, Logger: m.Logger}
	ctx := cmd.Context()
	folders, err := bw.ListFolders(ctx)
	if err != nil {
		return err
	}
	items, err := bw.ListItems(ctx)
	if err != nil {
		return err
	}
	return m.runConversion(ctx, cfg, folders, items, bw)
}

// Json2Kdbx converts a `bw export --format json` file. Without a file
// argument the export text is read from the clipboard.
func (m *Bw2kpCLI) Json2Kdbx(cmd *cobra.Command, args []string) error {
	cfg, err := m.loadConfig(cmd)
	if err != nil {
		return err
	}
	var data []byte
	if len(args) == 0 {
		text, err := clipboard.ReadAll()
		if err != nil {
			return err
		}
		data = []byte(text)
	} else {
		m.Logger.Info("json2kdbx", "args", args)
		data, err = os.ReadFile(args[0])
		if err != nil {
			return err
		}
	}
	var export entities.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("decode bitwarden export: %w", err)
	}
	if export.Encrypted {
		return fmt.Errorf("encrypted exports are not supported, use `bw export --format json`")
	}
	return m.runConversion(cmd.Context(), cfg, export.Folders, export.Items, nil)
}

// Csv2Kdbx converts a `bw export --format csv` file. Without a file
// argument the export text is read from the clipboard.
func (m *Bw2kpCLI) Csv2Kdbx(cmd *cobra.Command, args []string) error {
	cfg, err := m.loadConfig(cmd)
	if err != nil {
		return err
	}
	var rows []entities.BitwardenCSV
	if len(args) == 0 {
		csvText, err := clipboard.ReadAll()
		if err != nil {
			return err
		}
		if err := gocsv.UnmarshalString(csvText, &rows); err != nil {
			return err
		}
	} else {
		m.Logger.Info("csv2kdbx", "args", args)
		csvFile, err := os.OpenFile(args[0], os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		defer csvFile.Close()
		if err := gocsv.UnmarshalFile(csvFile, &rows); err != nil {
			return err
		}
	}
	export := entities.ExportFromCSV(rows)
	return m.runConversion(cmd.Context(), cfg, export.Folders, export.Items, nil)
}

func (m *Bw2kpCLI) runConversion(ctx context.Context, cfg Config, folders []entities.Folder, items []entities.Item, attachments convert.AttachmentSource) error {
	if !rice.PathExists(cfg.DatabasePath) {
		m.Logger.Info("keepass database does not exist, creating a new one", "path", cfg.DatabasePath)
	}
	db, err := keepass.OpenOrCreate(cfg.DatabasePath, cfg.DatabasePassword, cfg.DatabaseKeyfile)
	if err != nil {
		return err
	}
	stats, err := convert.New(db, m.Logger, attachments).Run(ctx, folders, items)
	if err != nil {
		return err
	}
	m.Logger.Info("export completed",
		"folders", stats.Folders,
		"entries", stats.Entries,
		"attachments", stats.Attachments,
		"skipped", stats.Skipped)
	return nil
}

func (m *Bw2kpCLI) loadConfig(cmd *cobra.Command) (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	flagString := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = v
		}
	}
	flagString("bw-session", &cfg.BWSession)
	flagString("bw-path", &cfg.BWPath)
	flagString("database-path", &cfg.DatabasePath)
	flagString("database-password", &cfg.DatabasePassword)
	flagString("database-keyfile", &cfg.DatabaseKeyfile)

	if cfg.DatabasePath == "" {
		return cfg, fmt.Errorf("database path is not set, use --database-path or DATABASE_PATH")
	}
	if cfg.DatabaseKeyfile != "" && !rice.PathExists(cfg.DatabaseKeyfile) {
		return cfg, fmt.Errorf("keepass key file is not readable: %s", cfg.DatabaseKeyfile)
	}
	if cfg.DatabasePassword == "" && cfg.DatabaseKeyfile == "" {
		password, err := readPassword("KeePass database password: ")
		if err != nil {
			return cfg, err
		}
		cfg.DatabasePassword = password
	}
	return cfg, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func NewCLI() *cobra.Command {
	muCLI := &Bw2kpCLI{Logger: slog.Default()}

	rootCmd := &cobra.Command{
		Use:   "bw2kp",
		Short: "Export a Bitwarden vault into a KeePass database.",
		RunE:  muCLI.Convert,
	}
	rootCmd.Flags().BoolP("version", "v", false, "version")
	rootCmd.Flags().String("bw-session", "", "session token from `bw unlock`, defaults to BW_SESSION")
	rootCmd.Flags().String("bw-path", "", "path of the bw binary, defaults to BW_PATH or \"bw\"")
	rootCmd.PersistentFlags().String("database-path", "", "path of the KeePass database, created if it does not exist")
	rootCmd.PersistentFlags().String("database-password", "", "password of the KeePass database, defaults to DATABASE_PASSWORD")
	rootCmd.PersistentFlags().String("database-keyfile", "", "key file of the KeePass database, defaults to DATABASE_KEYFILE")

	json2KdbxCmd := &cobra.Command{
		Use:   "json2kdbx [file]",
		Short: "Convert a `bw export --format json` file to the KeePass database.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  muCLI.Json2Kdbx,
	}

	csv2KdbxCmd := &cobra.Command{
		Use:   "csv2kdbx [file]",
		Short: "Convert a `bw export --format csv` file to the KeePass database.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  muCLI.Csv2Kdbx,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bw2kp %s", version.Version)
		},
	}

	rootCmd.AddCommand(
		json2KdbxCmd,
		csv2KdbxCmd,
		versionCmd,
	)
	return rootCmd
}
