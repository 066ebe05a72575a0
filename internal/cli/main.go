package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/recapcut/internal/config"
	"github.com/forPelevin/recapcut/internal/logging"
)

type app struct {
	cfg        *config.Config
	configPath string
	logLevel   string
	closeLog   func()
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	os.Exit(Execute(os.Args[1:]))
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	a := &app{}
	root := newRoot(a)
	root.SetArgs(args)
	err := root.Execute()
	if a.closeLog != nil {
		a.closeLog()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "recapcut",
		Short:         "Assemble a narrated film recap from a storyboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = a.logLevel
			}
			closeLog, err := logging.Init(cfg.Log.Level, cfg.Log.Path)
			if err != nil {
				return err
			}
			a.cfg, a.closeLog = cfg, closeLog
			return nil
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(newRenderCmd(a), newStoryboardCmd(a), newHistoryCmd(a), newInitConfigCmd(a))
	return root
}
