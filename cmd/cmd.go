// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shubhanshu02/ffmpeg-1/envconfig"
	"github.com/shubhanshu02/ffmpeg-1/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "dnn",
		Short:         "Native DNN inference engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("dnn version is %s\n", version.Version)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	infoCmd := newInfoCmd()
	shapeCmd := newShapeCmd()
	runCmd := newRunCmd()
	serveCmd := newServeCmd()

	envVars := envconfig.AsMap()
	appendEnvDocs(runCmd, []envconfig.EnvVar{envVars["DNN_NIREQ"], envVars["DNN_CONV2D_THREADS"], envVars["DNN_DEBUG"]})
	appendEnvDocs(serveCmd, []envconfig.EnvVar{envVars["DNN_HOST"], envVars["DNN_ORIGINS"], envVars["DNN_NIREQ"], envVars["DNN_DEBUG"]})

	rootCmd.AddCommand(
		infoCmd,
		shapeCmd,
		runCmd,
		serveCmd,
	)

	return rootCmd
}
