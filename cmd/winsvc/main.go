// Command winsvc installs, controls, and hosts Windows services that wrap
// arbitrary executables.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	winsvc "github.com/axondata/go-winsvc"
)

// LogFileEnv names an optional log file the host appends to in addition
// to stderr. Services run detached from any console, so without it host
// logs are lost.
const LogFileEnv = "WINSVC_LOG"

var (
	logger zerolog.Logger

	flagVerbose bool

	// install flags
	flagName        string
	flagDisplayName string
	flagDescription string
	flagExecutable  string
	flagArgs        []string
	flagWorkingDir  string
	flagStdout      string
	flagStderr      string

	// control flags
	flagCtlName  string
	flagCtlNames []string
)

func main() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	installCmd.Flags().StringVarP(&flagName, "name", "n", "", "service name")
	installCmd.Flags().StringVarP(&flagDisplayName, "display-name", "i", "", "display name shown by management tools")
	installCmd.Flags().StringVarP(&flagDescription, "description", "d", "", "service description")
	installCmd.Flags().StringVarP(&flagExecutable, "executable", "e", "", "target executable to supervise")
	installCmd.Flags().StringArrayVarP(&flagArgs, "args", "a", nil, "argument for the target executable (repeatable)")
	installCmd.Flags().StringVarP(&flagWorkingDir, "working-directory", "w", "", "working directory for the target executable")
	installCmd.Flags().StringVar(&flagStdout, "stdout", "", "file to append the target's stdout to")
	installCmd.Flags().StringVar(&flagStderr, "stderr", "", "file to append the target's stderr to")

	for _, c := range []*cobra.Command{uninstallCmd, statusCmd, runCmd} {
		c.Flags().StringVarP(&flagCtlName, "name", "n", "", "service name")
		_ = c.MarkFlagRequired("name")
	}
	for _, c := range []*cobra.Command{startCmd, stopCmd, restartCmd} {
		c.Flags().StringArrayVarP(&flagCtlNames, "name", "n", nil, "service name (repeatable)")
		_ = c.MarkFlagRequired("name")
	}

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRun = initLogging

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("winsvc failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "winsvc",
	Short:        "Register and supervise arbitrary executables as Windows services",
	SilenceUsage: true,
}

var installCmd = &cobra.Command{
	Use:   "install [name executable]",
	Short: "register a service and persist its launch configuration",
	Args:  cobra.MaximumNArgs(2),
	RunE:  doInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "remove a service and its persisted configuration",
	Args:  cobra.NoArgs,
	RunE:  doUninstall,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start one or more services",
	Args:  cobra.NoArgs,
	RunE:  doStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop one or more services",
	Args:  cobra.NoArgs,
	RunE:  doStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "stop then start one or more services",
	Args:  cobra.NoArgs,
	RunE:  doRestart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the current state of a service",
	Args:  cobra.NoArgs,
	RunE:  doStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list all registered services",
	Args:  cobra.NoArgs,
	RunE:  doList,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "host a service instance (invoked by the service controller)",
	Args:  cobra.NoArgs,
	RunE:  doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := winsvc.GetVersion()
		fmt.Printf("winsvc %s (%s)\n", info.Version, info.Platform)
	},
}

func initLogging(cmd *cobra.Command, _ []string) {
	out := zerolog.MultiLevelWriter(newConsoleWriter())
	if path := os.Getenv(LogFileEnv); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, winsvc.LogFileMode); err == nil {
			out = zerolog.MultiLevelWriter(newConsoleWriter(), f)
		}
	}

	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newConsoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}

func doInstall(cmd *cobra.Command, args []string) error {
	name, executable := flagName, flagExecutable
	if len(args) >= 1 {
		name = args[0]
	}
	if len(args) == 2 {
		executable = args[1]
	}
	if name == "" || executable == "" {
		return errors.New("a service name and a target executable are required")
	}

	cfg := &winsvc.ServiceConfig{
		Name:       name,
		Executable: executable,
		Args:       flagArgs,
		WorkingDir: flagWorkingDir,
		StdoutPath: flagStdout,
		StderrPath: flagStderr,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(executable); err != nil {
		return fmt.Errorf("target executable %q: %w", executable, err)
	}

	reg, err := connectRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := cmd.Context()
	if err := reg.Create(ctx, cfg, flagDisplayName, flagDescription); err != nil {
		return err
	}

	store, err := winsvc.DefaultStore(logger)
	if err != nil {
		return err
	}
	if err := store.Save(cfg); err != nil {
		// The entry is useless without its launch configuration.
		if derr := reg.Delete(ctx, name); derr != nil {
			logger.Warn().Err(derr).Str("service", name).
				Msg("rollback of the service entry failed")
		}
		return err
	}

	fmt.Printf("Service '%s' installed\n", name)
	return nil
}

func doUninstall(cmd *cobra.Command, args []string) error {
	name := flagCtlName

	reg, err := connectRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := reg.Delete(cmd.Context(), name); err != nil {
		return err
	}

	store, err := winsvc.DefaultStore(logger)
	if err != nil {
		return err
	}
	if err := store.Delete(name); err != nil {
		logger.Warn().Err(err).Str("service", name).
			Msg("could not remove persisted configuration")
	}

	fmt.Printf("Service '%s' uninstalled\n", name)
	return nil
}

func doStart(cmd *cobra.Command, args []string) error {
	return withManager(func(m *winsvc.Manager) error {
		return m.Start(cmd.Context(), flagCtlNames...)
	})
}

func doStop(cmd *cobra.Command, args []string) error {
	return withManager(func(m *winsvc.Manager) error {
		return m.Stop(cmd.Context(), flagCtlNames...)
	})
}

func doRestart(cmd *cobra.Command, args []string) error {
	return withManager(func(m *winsvc.Manager) error {
		return m.Restart(cmd.Context(), flagCtlNames...)
	})
}

func doStatus(cmd *cobra.Command, args []string) error {
	name := flagCtlName

	reg, err := connectRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	state, err := reg.Status(cmd.Context(), name)
	if err != nil {
		return err
	}
	fmt.Printf("Service '%s': %s\n", name, state)
	return nil
}

func doList(cmd *cobra.Command, args []string) error {
	reg, err := connectRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	infos, err := reg.List(cmd.Context())
	if err != nil {
		return err
	}

	for _, info := range infos {
		fmt.Printf("%-16s %-40s %s\n", info.State, info.Name, info.DisplayName)
	}
	return nil
}

func doRun(cmd *cobra.Command, args []string) error {
	host := winsvc.NewHost(flagCtlName, winsvc.WithHostLogger(logger))
	return host.Run(cmd.Context())
}

func connectRegistry() (winsvc.ServiceRegistry, error) {
	return winsvc.ConnectServiceRegistry(winsvc.WithServiceRegistryLogger(logger))
}

func withManager(fn func(*winsvc.Manager) error) error {
	reg, err := connectRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	return fn(winsvc.NewManager(reg))
}
