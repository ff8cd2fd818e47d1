package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Eduhs21/ClipBuilder/internal/app"
	"github.com/Eduhs21/ClipBuilder/internal/config"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	listen, _ := cmd.Flags().GetString("listen")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	return app.Run(context.Background(), cfg, log)
}
