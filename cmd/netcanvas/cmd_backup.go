package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/backup"
	"github.com/HerbHall/netcanvas/internal/ui"
)

func (c *cli) backupCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the local state and config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(); err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("netcanvas-backup-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create backup: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := backup.Backup(cmd.Context(), c.settings.Storage.Path, c.cfg.File(), w); err != nil {
				return err
			}
			if output != "-" {
				ui.Success(cmd.ErrOrStderr(), "Backup written to %s", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path, - for stdout (default netcanvas-backup-<time>.tar.gz)")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive|->",
		Short: "Restore local state from a backup archive",
		Long: "Restore unpacks the state database and config file next to storage.path.\n" +
			"Existing files are overwritten.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(); err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open backup: %w", err)
				}
				defer f.Close()
				r = f
			}
			dbPath := c.settings.Storage.Path
			written, err := backup.Restore(r, filepath.Dir(dbPath))
			if err != nil {
				return err
			}
			for i, p := range written {
				if filepath.Base(p) == backup.StateName && p != dbPath {
					if err := os.Rename(p, dbPath); err != nil {
						return fmt.Errorf("move state database: %w", err)
					}
					written[i] = dbPath
				}
			}
			out := cmd.OutOrStdout()
			for _, p := range written {
				ui.Success(out, "Restored %s", p)
			}
			return nil
		},
	}
}
