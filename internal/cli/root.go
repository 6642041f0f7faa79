package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/stpbots/questioner/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"   ___                  _   _\n" +
		"  / _ \\ _   _  ___  ___| |_(_) ___  _ __   ___ _ __\n" +
		" | | | | | | |/ _ \\/ __| __| |/ _ \\| '_ \\ / _ \\ '__|\n" +
		" | |_| | |_| |  __/\\__ \\ |_| | (_) | | | |  __/ |\n" +
		"  \\__\\_\\\\__,_|\\___||___/\\__|_|\\___/|_| |_|\\___|_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "questioner",
	Short: "Questioner - mediated Q&A broker for support teams",
	Long:  color.CyanString(logo) + "\nRelays questions between specialists and the duty forum, one topic per question.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
}
