package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

type CommandRegistry struct {
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{}
}

func (*CommandRegistry) RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:                  "qadeck",
		Version:               version,
		Usage:                 "Basecamp card integration for the QA dashboard",
		Suggest:               true,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "configs/config.yaml",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: RootCommand(),
		Commands: []*cli.Command{
			ServeCommand(),
			MigrateCommand(),
			TokenCommands(),
		},
	}
}

// RootCommand prints the build version and where configuration will be read
// from when qadeck is invoked without a subcommand.
func RootCommand() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")
		configState := "found"
		if _, err := os.Stat(configPath); err != nil {
			configState = "missing, falling back to defaults and QADECK_* env"
		}

		fmt.Fprintln(cmd.Writer, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintf(cmd.Writer, "qadeck %s\n", version)
		fmt.Fprintf(cmd.Writer, "config: %s (%s)\n", configPath, configState)
		fmt.Fprintln(cmd.Writer, "Run 'qadeck serve' to start the API or 'qadeck --help' for all commands.")
		fmt.Fprintln(cmd.Writer, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		return nil
	}
}
