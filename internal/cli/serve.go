package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"testops/testplan-engine/api/rest"
	"testops/testplan-engine/internal/notebook"
	"testops/testplan-engine/internal/scheduler"
	"testops/testplan-engine/internal/sysmgmt"
	"testops/testplan-engine/pkg/logger"
)

var (
	serveAddress     string
	serveEngineURL   string
	serveNotebookURL string
	serveAPIKey      string
	servePollEvery   time.Duration
	serveCORS        bool
)

// serveCmd is the serve subcommand.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the test plan engine REST API server",
	Example: `  # Serve on the default address
  testplan-engine serve --engine-url http://localhost:9090

  # Custom listen address
  testplan-engine serve --address :9000`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveEngineURL, "engine-url", "http://localhost:9090", "systems management service URL")
	serveCmd.Flags().StringVar(&serveNotebookURL, "notebook-url", "", "notebook execution service URL (defaults to engine-url)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "API key for the execution services")
	serveCmd.Flags().DurationVar(&servePollEvery, "poll-interval", 2*time.Second, "job state poll interval")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "enable CORS")
}

func serve(cmd *cobra.Command, args []string) error {
	if serveNotebookURL == "" {
		serveNotebookURL = serveEngineURL
	}

	sched := scheduler.New(
		sysmgmt.NewClient(sysmgmt.Config{BaseURL: serveEngineURL, APIKey: serveAPIKey, PollInterval: servePollEvery}),
		notebook.NewClient(notebook.Config{BaseURL: serveNotebookURL, APIKey: serveAPIKey, PollInterval: servePollEvery}),
		nil,
	)

	config := rest.DefaultConfig()
	config.Address = serveAddress
	config.EnableCORS = serveCORS

	server := rest.NewServer(sched, config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("serving on %s", serveAddress)
	return server.StartWithContext(ctx)
}
