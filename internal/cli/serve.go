package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsasheet/tui/internal/devserver"
	"github.com/dsasheet/tui/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local stub backend (REST + websocket)",
	Long: `serve runs an in-memory stub of the DSA Sheet backend on localhost,
seeded with a demo account and a small topic sheet. Useful for trying
the TUI without a real deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Setup(logging.Options{Level: logLevel, Output: os.Stderr}); err != nil {
			return err
		}
		srv := devserver.New(slog.Default())
		email, password := devserver.DemoCredentials()
		fmt.Printf("dsasheet stub backend on http://%s\n", serveAddr)
		fmt.Printf("demo account: %s / %s\n", email, password)
		return http.ListenAndServe(serveAddr, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5000", "listen address")
	rootCmd.AddCommand(serveCmd)
}
