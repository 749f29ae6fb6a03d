package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restruct/internal/applier"
	"restruct/internal/logger"
	"restruct/internal/repository"
	"restruct/internal/scanner"
	"restruct/internal/server"
	"restruct/internal/watch"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the restructuring HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		port := cfg.Port
		if servePort != 0 {
			port = servePort
		}

		fs := afero.NewOsFs()
		sc := scanner.New(fs, cfg.IgnoreList, cfg.ScanWorkers)
		ap := applier.New(fs, applier.NewBackupRegistry(), cfg.BackupPrefix)

		var tracker *watch.Tracker
		if cfg.WatchRoots {
			var err error
			tracker, err = watch.New()
			if err != nil {
				return err
			}
			defer tracker.Stop()
		}

		srv := server.New(sc, ap, tracker, repository.NewHistoryRepository(), cfg.MaxBodySize, port)
		srv.Start()

		logger.Log.Info("restruct service ready",
			zap.Int("port", port))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
