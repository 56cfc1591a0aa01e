package main

import (
	"fmt"
	"io"
	"os"

	"github.com/inconshreveable/log15"
	"github.com/spf13/pflag"

	"github.com/oclgrind/oclgrind"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	flags := pflag.NewFlagSet("oclgrind-plugins", pflag.ContinueOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVarP(&help, "help", "h", false, "print usage")

	v := oclgrind.NewViper()
	if err := oclgrind.RegisterFlags(flags, v); err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	if err := flags.Parse(args); err != nil {
		printUsage(stdErr, flags)
		return 1
	}

	if help {
		printUsage(stdErr, flags)
		return 0
	}

	if flags.NArg() != 0 {
		fmt.Fprintln(stdErr, "unexpected arguments")
		printUsage(stdErr, flags)
		return 1
	}

	log := log15.New("module", "oclgrind")
	log.SetHandler(log15.StreamHandler(stdErr, log15.LogfmtFormat()))

	config := oclgrind.NewContextConfigFromViper(v).
		WithStderr(stdErr).
		WithStdout(stdOut).
		WithLogger(log)
	ctx := oclgrind.NewContextWithConfig(config)

	fmt.Fprintln(stdOut, "Plugins:")
	for _, p := range ctx.Plugins() {
		fmt.Fprintf(stdOut, "  %T\n", p)
	}
	libs := ctx.PluginLibraries()
	if len(libs) > 0 {
		fmt.Fprintln(stdOut, "Plugin libraries:")
		for _, path := range libs {
			fmt.Fprintf(stdOut, "  %s\n", path)
		}
	}

	if err := ctx.Close(); err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}
	return 0
}

func printUsage(stdErr io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(stdErr, "oclgrind-plugins CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  oclgrind-plugins <options>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Lists the plugins a simulated device would notify, in order. Options default to the")
	fmt.Fprintln(stdErr, "OCLGRIND_ environment variable of the same name, e.g. OCLGRIND_DATA_RACES=1.")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
