// Package cli wires the dsasheet commands: the TUI itself plus a few
// one-shot account helpers and the local dev server.
package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dsasheet/tui/internal/app"
)

var (
	cfgPath   string
	serverURL string
	logLevel  string
)

// rootCmd launches the TUI when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "dsasheet",
	Short: "Terminal client for the DSA practice sheet",
	Long: `dsasheet is a terminal client for the DSA practice sheet backend.

Run it without arguments to open the TUI: sign in, browse topics, read
problems, and mark them solved. Progress and notifications arrive live
over the backend's websocket channel.

Quick start:
  dsasheet serve        # in one terminal: local stub backend
  dsasheet              # in another: the TUI (demo@dsasheet.com / Demo123!)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func runTUI(cmd *cobra.Command, args []string) error {
	st, err := newStack(true)
	if err != nil {
		return err
	}
	defer st.close()

	st.mgr.Start()

	m := app.New(app.Deps{
		Client:  st.client,
		Session: st.sess,
		Channel: st.mgr,
		Toasts:  st.toasts,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
