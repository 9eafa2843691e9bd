package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile    string
	noArtworkFlag bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sonic",
		Short:         "Sonic plays a fixed playlist in the terminal.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(viper.GetViper())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/sonic/config.yaml)")
	flags.BoolVar(&noArtworkFlag, "no-artwork", false, "Disable album artwork display")
	flags.StringP("color", "c", "5", "Set the desired color (name or hex)")
	flags.Int("volume", 70, "Initial volume (0-100)")
	flags.String("backend", "beep", "Playback backend: beep or playerctl")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Log file path, - to disable logging")

	bind := map[string]string{
		"ui.color":         "color",
		"playback.volume":  "volume",
		"playback.backend": "backend",
		"log.level":        "log-level",
		"log.file":         "log-file",
	}
	for key, flag := range bind {
		// only fails for an unknown flag name
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func run(v *viper.Viper) error {
	if noArtworkFlag {
		v.Set("artwork.enabled", false)
	}
	cfg, warnings := loadConfig(v, configFile)
	printConfigWarnings(warnings)
	config.Set(cfg)
	watchConfig(v)

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	for _, w := range warnings {
		log.Warn("invalid configuration", zap.Error(w))
	}

	playlist, err := NewPlaylist(cfg.Playlist)
	if err != nil {
		return fmt.Errorf("invalid playlist: %w", err)
	}

	player, err := NewMediaPlayer(cfg, log)
	if err != nil {
		return err
	}
	defer player.Close()

	ctrl := NewController(playlist, player, ControllerOptions{
		Volume:      cfg.Playback.Volume,
		AutoAdvance: cfg.Playback.AutoAdvance,
		Logger:      log,
	})

	log.Info("starting",
		zap.Int("tracks", playlist.Len()),
		zap.String("backend", cfg.Playback.Backend),
		zap.Int("volume", ctrl.Volume()))

	m := newModel(ctrl, player.Events(), cfg, supportsKittyGraphics(), log)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
