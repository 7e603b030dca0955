package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/framesync-go/internal/cli/config"
	"github.com/yndnr/framesync-go/internal/cli/output"
	"github.com/yndnr/framesync-go/internal/infra/buildinfo"
)

const cliConfigKey = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "framesync-cli",
		Usage:   "framesync operator tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			JournalCommand(),
			NodeCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[cliConfigKey] = cfg
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default ~/.framesync/cli.yaml)",
			EnvVars: []string{"FRAMESYNC_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "admin",
			Aliases: []string{"a"},
			Usage:   "Coordinator admin address (host:port or URL)",
			EnvVars: []string{"FRAMESYNC_ADMIN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
	}
}

// GlobalFlags holds the resolved global options.
type GlobalFlags struct {
	Admin  string
	Output output.Format
}

// ParseGlobalFlags resolves global flags, falling back to the CLI config.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg := cliConfig(c)

	admin := c.String("admin")
	if admin == "" {
		admin = cfg.Admin
	}
	format := c.String("output")
	if format == "" {
		format = cfg.Output
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{Admin: admin, Output: f}, nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[cliConfigKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// render writes data in the selected format. Table output uses view.
func render(c *cli.Context, format output.Format, data, view any) error {
	if format == output.FormatTable {
		data = view
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
