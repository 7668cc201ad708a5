// cmd_serve.go - Serve Command Handler
// Hauptfunktionen: RunServer, newServeCmd
package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/shubhanshu02/ffmpeg-1/envconfig"
	"github.com/shubhanshu02/ffmpeg-1/server"
)

// RunServer - Startet den Inferenz-Server auf DNN_HOST
func RunServer(cmd *cobra.Command, args []string) error {
	ln, err := net.Listen("tcp", envconfig.Host())
	if err != nil {
		return err
	}

	return server.Serve(ln, args[0])
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve MODEL",
		Aliases: []string{"start"},
		Short:   "Start the inference server",
		Args:    cobra.ExactArgs(1),
		RunE:    RunServer,
	}
}
