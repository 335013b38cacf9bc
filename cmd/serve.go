package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sudharshanj25/bugtracker/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issue-tracking HTTP server",
	Long: "Start the HTTP server exposing the issue API, the web page,\n" +
		"uploaded attachments, and the spreadsheet export.\n" +
		"By default it listens on port 5000. Use --port to change it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, files, err := getService()
		if err != nil {
			return err
		}

		maxBody := viper.GetInt64("max_upload_mb") << 20
		srv := api.NewServer(svc, files, maxBody)

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		slog.Info("starting server",
			"addr", addr,
			"db", viper.GetString("db_path"),
			"uploads", files.Root(),
		)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 5000, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
