package cli

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
)

const (
	flagTarget         = "target"
	flagSSHHost        = "ssh-host"
	flagSSHPort        = "ssh-port"
	flagSSHUser        = "ssh-user"
	flagSSHKey         = "ssh-key"
	flagSSHKnownHosts  = "ssh-known-hosts"
	flagCommandTimeout = "command-timeout"
	flagConfigDir      = "config-dir"
	flagCleanupOrphans = "cleanup-orphans"
	flagMetricsAddress = "metrics-address"
	flagLogLevel       = "log-level"
)

func envVar(suffix string) cli.ValueSourceChain {
	return cli.EnvVars("CNS_AGENT_" + suffix)
}

func globalFlags() []cli.Flag {
	def := config.New()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagTarget,
			Usage:   "Where commands run: auto, local or remote",
			Value:   string(def.Target),
			Sources: envVar("TARGET"),
		},
		&cli.StringFlag{
			Name:    flagSSHHost,
			Usage:   "SSH host for the remote target",
			Sources: envVar("SSH_HOST"),
		},
		&cli.IntFlag{
			Name:    flagSSHPort,
			Usage:   "SSH port",
			Value:   def.SSH.Port,
			Sources: envVar("SSH_PORT"),
		},
		&cli.StringFlag{
			Name:    flagSSHUser,
			Usage:   "SSH user",
			Value:   def.SSH.User,
			Sources: envVar("SSH_USER"),
		},
		&cli.StringFlag{
			Name:    flagSSHKey,
			Usage:   "Private key file for SSH authentication",
			Value:   def.SSH.KeyFile,
			Sources: envVar("SSH_KEY"),
		},
		&cli.StringFlag{
			Name:    flagSSHKnownHosts,
			Usage:   "known_hosts file; host keys are not verified when empty",
			Sources: envVar("SSH_KNOWN_HOSTS"),
		},
		&cli.DurationFlag{
			Name:    flagCommandTimeout,
			Usage:   "Default timeout for external commands",
			Value:   def.CommandTimeout,
			Sources: envVar("COMMAND_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    flagConfigDir,
			Usage:   "Quadlet directory to watch",
			Value:   def.ConfigDir,
			Sources: envVar("CONFIG_DIR"),
		},
		&cli.BoolFlag{
			Name:    flagCleanupOrphans,
			Usage:   "Terminate orphaned agent processes on startup",
			Value:   def.CleanupOrphans,
			Sources: envVar("CLEANUP_ORPHANS"),
		},
		&cli.StringFlag{
			Name:    flagMetricsAddress,
			Usage:   "Listen address for /metrics, /health and /ready (disabled when empty)",
			Sources: envVar("METRICS_ADDRESS"),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Log level (debug, info, warn, error)",
			Value:   def.LogLevel,
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// configFromCommand builds and validates the agent configuration from flags.
func configFromCommand(cmd *cli.Command) (*config.Config, error) {
	target, err := config.ParseTarget(cmd.String(flagTarget))
	if err != nil {
		return nil, err
	}

	cfg := config.New()
	cfg.Name = name
	cfg.Version = version
	cfg.Target = target
	cfg.SSH = config.SSH{
		Host:           cmd.String(flagSSHHost),
		Port:           cmd.Int(flagSSHPort),
		User:           cmd.String(flagSSHUser),
		KeyFile:        cmd.String(flagSSHKey),
		KnownHostsFile: cmd.String(flagSSHKnownHosts),
	}
	cfg.CommandTimeout = cmd.Duration(flagCommandTimeout)
	cfg.ConfigDir = cmd.String(flagConfigDir)
	cfg.CleanupOrphans = cmd.Bool(flagCleanupOrphans)
	cfg.MetricsAddress = cmd.String(flagMetricsAddress)
	cfg.LogLevel = cmd.String(flagLogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
