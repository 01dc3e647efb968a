package cmd

import (
	"github.com/go-chi/chi/v5"
	"github.com/sander-remitly/packer/internal/web"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and API server",
	Long:  `Start both the web UI and REST API server together.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServer(cmd.Context(), "Server", mountWeb)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func mountWeb(router *chi.Mux) error {
	webHandler, err := web.NewHandler()
	if err != nil {
		return err
	}
	return webHandler.SetupRoutes(router)
}
