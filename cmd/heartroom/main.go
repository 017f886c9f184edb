// Heartroom CLI entry point.
//
// Two people open a direct WebRTC data channel and share a small "heart"
// presence state. There is no signaling server: the handshake travels in
// links that are copied by hand, an invite link from the host and a response
// link back from the guest.
//
// It can be launched interactively (no subcommand) or through the host and
// join subcommands.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/heartroom/internal/config"
	"github.com/1ureka/heartroom/internal/util"
)

var version = "dev"

var (
	flagConfig   string
	flagName     string
	flagNameFile string
	flagSTUN     []string
	flagLinkBase string
	flagFeed     string
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "heartroom",
	Short: "Share a heart with a friend over a direct WebRTC link",
	Long: `Heartroom connects peers directly over WebRTC without a signaling server.
The host creates a room and sends invite links; each guest answers with a
response link that the host applies. Once connected, every participant sees
everyone's heart state.

Examples:
  heartroom                       interactive menu
  heartroom host --name Aino
  heartroom join 'https://1ureka.net/heart/#offer=...'
  heartroom host --feed 127.0.0.1:7420`,
	Version: version,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		return s.runMenu(cmd.Context())
	},
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room and invite friends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		s.room.CreateRoom()
		return s.runMenu(cmd.Context())
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <invite-link>",
	Short: "Join a room from an invite link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.join(cmd.Context(), args[0]); err != nil {
			return err
		}
		return s.runMenu(cmd.Context())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	pf.StringVarP(&flagName, "name", "n", "", "Display name for this session")
	pf.StringVar(&flagNameFile, "name-file", "", "Where the display name is remembered")
	pf.StringSliceVarP(&flagSTUN, "stun", "s", nil, "STUN server URL (repeatable)")
	pf.StringVar(&flagLinkBase, "link-base", "", "Base URL that handshake links are built on")
	pf.StringVar(&flagFeed, "feed", "", "Serve a local WebSocket feed on this loopback address")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(hostCmd, joinCmd)
}

func options() config.Options {
	return config.Options{
		ConfigPath:  flagConfig,
		ICEServers:  flagSTUN,
		LinkBase:    flagLinkBase,
		DisplayName: flagName,
		NameFile:    flagNameFile,
		FeedAddr:    flagFeed,
		Debug:       flagDebug,
	}
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	pterm.Info.Printfln("Heartroom v%s", version)
	pterm.Println()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}
