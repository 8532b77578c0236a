package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/larsks/diskimg/internal/config"
	"github.com/larsks/diskimg/internal/logging"
	mm "github.com/larsks/diskimg/internal/mountmanager"
	"github.com/larsks/diskimg/internal/runner"
	"github.com/larsks/diskimg/internal/version"
)

const defaultConfigFile = "/etc/diskimg.yaml"

type (
	Options struct {
		partitions []int
		usePartfs  bool
		backend    string
		mountRoot  string
		configFile string
		verbose    bool
		version    bool
		help       bool
	}
)

var options Options

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <imagefile> <command> [args...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nMounts partitions of a disk image as <mount root>/p<N> and runs a command\n")
	fmt.Fprintf(os.Stderr, "in the mount root. Partitions are unmounted when the command exits.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s -p 1,2 disk.img ls -l p1 p2\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -p 2 --use-partfs disk.img cp config.txt p2/etc/\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -p 1 -m /tmp/img disk.img bash\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	pflag.PrintDefaults()
}

func init() {
	pflag.IntSliceVarP(&options.partitions, "partitions", "p", nil, "comma separated list of partitions to mount (starting from 1)")
	pflag.BoolVarP(&options.usePartfs, "use-partfs", "", false, "use FUSE based partfs instead of losetup (same as --backend partfs)")
	pflag.StringVarP(&options.backend, "backend", "b", "", "attach backend (losetup, partfs, nbd)")
	pflag.StringVarP(&options.mountRoot, "mount-root", "m", "", "directory to mount partitions in (default /mnt)")
	pflag.StringVarP(&options.configFile, "config", "c", defaultConfigFile, "configuration file")
	pflag.BoolVarP(&options.verbose, "verbose", "v", false, "show progress and the commands being run")
	pflag.BoolVarP(&options.version, "version", "", false, "show version and exit")
	pflag.BoolVarP(&options.help, "help", "h", false, "show this help message")

	// Everything after the image file belongs to the command.
	pflag.CommandLine.SetInterspersed(false)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(options.configFile, pflag.CommandLine.Changed("config"))
	if err != nil {
		return nil, err
	}

	if options.verbose {
		cfg.Verbose = true
	}
	if options.backend != "" {
		cfg.Backend = options.backend
	}
	if options.usePartfs {
		cfg.Backend = config.BackendPartfs
	}
	if options.mountRoot != "" {
		cfg.MountRootDir = options.mountRoot
	}
	return cfg, cfg.Validate()
}

func errorMessage(err error) string {
	var (
		cmdErr   *runner.CommandError
		inUseErr *mm.MountInUseError
	)

	switch {
	case errors.As(err, &inUseErr):
		return fmt.Sprintf("Partfs mount directory '%s' is in use", inUseErr.Dir)
	case errors.As(err, &cmdErr):
		return fmt.Sprintf("Return code: %d, Command: %s", cmdErr.ExitCode, cmdErr.CommandLine())
	}
	return fmt.Sprintf("Error: %v", err)
}

func run(manager *mm.MountManager, r runner.Runner, command []string) error {
	if err := manager.Mount(options.partitions); err != nil {
		return err
	}

	// The command gets terminal signals directly; holding ours keeps us
	// alive to unmount after it exits.
	signal.Notify(make(chan os.Signal, 1), os.Interrupt, syscall.SIGTERM)

	cmdErr := r.RunAttached(manager.MountRoot(), command[0], command[1:]...)
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Execution of your script failed.\n")
	}
	return errors.Join(cmdErr, manager.Unmount())
}

func main() {
	pflag.Parse()

	if options.help {
		printUsage()
		os.Exit(0)
	}

	if options.version {
		fmt.Println(version.String("diskimgmounter"))
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: requires an image file and a command\n")
		printUsage()
		os.Exit(1)
	}
	if !pflag.CommandLine.Changed("partitions") {
		fmt.Fprintf(os.Stderr, "Error: --partitions is required\n")
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Verbose)

	currentUser, userErr := user.Current()
	if userErr != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to get current user: %v\n", userErr)
		os.Exit(1)
	}
	if currentUser.Uid != "0" {
		fmt.Fprintf(os.Stderr, "Error: This program must be run as root\n")
		os.Exit(1)
	}

	r := runner.NewExecRunner(logger)
	backend, err := mm.NewBackend(cfg.Backend, mm.BackendOptions{
		PartfsMountDir: cfg.PartfsMountDir,
		NBDDevice:      cfg.NBDDevice,
		NBDFormat:      cfg.NBDFormat,
	}, r, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	manager := mm.NewMountManager(args[0], cfg.MountRootDir, backend, r, logger)
	if err := run(manager, r, args[1:]); err != nil {
		logger.WithError(err).Debug("mount failed")
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}
