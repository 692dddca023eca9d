package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func addFlags(flags *pflag.FlagSet) {
	flags.String("settings", "", "path to a YAML settings file")
	flags.String("problem", "", "path to a YAML problem file")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on, empty to disable")
	flags.Bool("debug", false, "enable debug logging")
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "cipsolve",
		Short: "cipsolve",
		Long:  `A constraint integer programming solver driven by YAML problem files.`,

		PreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		RunE: run,
	}

	addFlags(rootCmd.Flags())
	if err := rootCmd.Flags().MarkHidden("debug"); err != nil {
		log.Panic(err.Error())
	}
	if err := rootCmd.MarkFlagRequired("problem"); err != nil {
		log.Panic(err.Error())
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
