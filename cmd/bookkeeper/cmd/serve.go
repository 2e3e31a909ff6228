package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/internal/api"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

var serveAddr string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger API over HTTP",
	Long: `Serve the ledger and reconciliation core over HTTP.

The listen address comes from --addr, falling back to
BOOKKEEPER_LISTEN_ADDR.

Example:
  bookkeeper serve
  bookkeeper serve --addr :9000`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from environment)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("book.dbPath", "server.addr"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	slog.Debug("Opening book", "path", cfg.Book.DBPath)
	conn, err := db.Open(cfg.Book.DBPath)
	exitOnError(err, "failed to open book database")
	defer conn.Close()

	accountChart, err := loadChart(cfg)
	exitOnError(err, "failed to load chart of accounts")

	var taxable ledger.TaxableFunc = accountChart.Taxable
	server := api.NewServer(conn, taxable)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	slog.Info("Serving ledger API", "addr", addr, "book", conn.GetPath())
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		exitOnError(err, "server stopped")
	}
}
