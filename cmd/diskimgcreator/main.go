package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/pflag"

	"github.com/larsks/diskimg/internal/config"
	"github.com/larsks/diskimg/internal/creator"
	"github.com/larsks/diskimg/internal/formatter"
	"github.com/larsks/diskimg/internal/image"
	"github.com/larsks/diskimg/internal/logging"
	mm "github.com/larsks/diskimg/internal/mountmanager"
	"github.com/larsks/diskimg/internal/partition"
	"github.com/larsks/diskimg/internal/runner"
	"github.com/larsks/diskimg/internal/size"
	"github.com/larsks/diskimg/internal/version"
)

const defaultConfigFile = "/etc/diskimg.yaml"

type (
	Options struct {
		partitionsDir string
		force         bool
		usePartfs     bool
		backend       string
		configFile    string
		verbose       bool
		version       bool
		help          bool
	}
)

var options Options

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <imagefile>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCreates a partitioned disk image from a directory of partition sources.\n")
	fmt.Fprintf(os.Stderr, "\nShort format names:\n")
	fmt.Fprintf(os.Stderr, "  partition01[_msdos]_8MiB_fat32[.tar|.tar.gz]\n")
	fmt.Fprintf(os.Stderr, "  partition02_16GiB_ext4[.tar|.tar.gz]\n")
	fmt.Fprintf(os.Stderr, "\nLong format names:\n")
	fmt.Fprintf(os.Stderr, "  partition01 -- dd 256MiB -- parted mklabel msdos mkpart primary fat32 1 8MiB\n")
	fmt.Fprintf(os.Stderr, "  partition02 -- parted mkpart primary ext4 8MiB 100%%.tar.gz\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s -d ./example01 example01.img\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --force --use-partfs -d ./example02 example02.img\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	pflag.PrintDefaults()
}

func init() {
	pflag.StringVarP(&options.partitionsDir, "partitions-dir", "d", ".", "directory of the partitions")
	pflag.BoolVarP(&options.force, "force", "f", false, "overwrite any existing image file")
	pflag.BoolVarP(&options.usePartfs, "use-partfs", "", false, "use FUSE based partfs instead of losetup (same as --backend partfs)")
	pflag.StringVarP(&options.backend, "backend", "b", "", "attach backend (losetup, partfs, nbd)")
	pflag.StringVarP(&options.configFile, "config", "c", defaultConfigFile, "configuration file")
	pflag.BoolVarP(&options.verbose, "verbose", "v", false, "show progress and the commands being run")
	pflag.BoolVarP(&options.version, "version", "", false, "show version and exit")
	pflag.BoolVarP(&options.help, "help", "h", false, "show this help message")
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
	return cfg, cfg.Validate()
}

// errorMessage returns the message shown for a failed image creation.
func errorMessage(err error) string {
	var (
		existsErr  *image.ExistsError
		sizeErr    *size.ParseError
		grammarErr *partition.GrammarError
		fsErr      *formatter.UnknownFilesystemError
		cmdErr     *runner.CommandError
		inUseErr   *mm.MountInUseError
	)

	switch {
	case errors.As(err, &existsErr):
		return fmt.Sprintf("Image file '%s' already exists, use `-f` to overwrite", existsErr.Path)
	case errors.Is(err, partition.ErrNoPartitions):
		return fmt.Sprintf("Directory '%s' does not contain partitions.", options.partitionsDir)
	case errors.As(err, &sizeErr):
		if sizeErr.Token == "" {
			return sizeErr.Error()
		}
		return fmt.Sprintf("Unable to parse disk size %s", sizeErr.Token)
	case errors.As(err, &grammarErr):
		return fmt.Sprintf("Unable to parse partition file name: %s", grammarErr.Filename)
	case errors.As(err, &fsErr):
		return fmt.Sprintf("Unknown filesystem type: %s", fsErr.FSType)
	case errors.As(err, &inUseErr):
		return fmt.Sprintf("Partfs mount directory '%s' is in use", inUseErr.Dir)
	case errors.As(err, &cmdErr):
		return fmt.Sprintf("Return code: %d, Command: %s", cmdErr.ExitCode, cmdErr.CommandLine())
	}
	return fmt.Sprintf("Error: %v", err)
}

func main() {
	pflag.Parse()

	if options.help {
		printUsage()
		os.Exit(0)
	}

	if options.version {
		fmt.Println(version.String("diskimgcreator"))
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: requires exactly one argument (image file)\n")
		printUsage()
		os.Exit(1)
	}
	imagePath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Verbose)

	if info, err := os.Stat(options.partitionsDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Directory '%s' does not exist\n", options.partitionsDir)
		os.Exit(1)
	}

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

	c := creator.New(r, backend, cfg.TempFSDir, logger)
	if err := c.Create(options.partitionsDir, imagePath, options.force); err != nil {
		logger.WithError(err).Debug("image creation failed")
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}
