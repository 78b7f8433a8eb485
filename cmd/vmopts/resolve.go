package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azhovan/vmopts"
	"github.com/Azhovan/vmopts/sourceenv"
	"github.com/Azhovan/vmopts/sourcefile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type resolveOptions struct {
	physicalMemory sizeValue
	commitLimit    sizeValue
	cpus           int
	release        int
	format         string
	origins        bool
	useEnv         bool
	resource       string
	flagsFile      string
	snapshot       string
}

func newResolveCommand(g *globalOptions) *cobra.Command {
	o := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [flags] -- [VM options]",
		Short: "Parse VM options and print the resulting configuration",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args)
		},
	}

	f := cmd.Flags()
	f.Var(&o.physicalMemory, "physical-memory", "Physical memory of the target host (default: this machine)")
	f.Var(&o.commitLimit, "commit-limit", "Address space limit of the target host (default: unlimited)")
	f.IntVar(&o.cpus, "cpus", 0, "Processor count of the target host (default: this machine)")
	f.IntVar(&o.release, "release", vmopts.DefaultVersion().Major, "Feature release lifecycle markers are compared to")
	f.StringVarP(&o.format, "output", "o", "text", "Output format: text, json or yaml")
	f.BoolVar(&o.origins, "origins", false, "Show where each flag value came from")
	f.BoolVar(&o.useEnv, "env", true, "Read JAVA_TOOL_OPTIONS, _JAVA_OPTIONS and JDK_AOT_VM_OPTIONS")
	f.StringVar(&o.resource, "resource", "", "Options file standing in for the runtime image resource")
	f.StringVar(&o.flagsFile, "default-flags-file", "", "Settings file processed when present")
	f.StringVar(&o.snapshot, "snapshot", "", "Also write a snapshot to this path ({{timestamp}} is expanded)")
	return cmd
}

func (o *resolveOptions) host() vmopts.Host {
	probed := vmopts.HostInfo()
	h := vmopts.StaticHost{
		Memory:      probed.PhysicalMemory(),
		Commit:      probed.CommitLimit(),
		Page:        probed.PageSize(),
		Granularity: probed.AllocationGranularity(),
		CPUs:        probed.ProcessorCount(),
		Privileged:  probed.HasSpecialPrivileges(),
	}
	if o.physicalMemory != 0 {
		h.Memory = uint64(o.physicalMemory)
	}
	if o.commitLimit != 0 {
		h.Commit = uint64(o.commitLimit)
	}
	if o.cpus > 0 {
		h.CPUs = o.cpus
	}
	return h
}

func (o *resolveOptions) run(cmd *cobra.Command, g *globalOptions, args []string) error {
	logger, err := g.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()
	a := vmopts.NewArguments().
		WithCommandLine(args...).
		WithHost(o.host()).
		WithLogger(logger).
		WithOutput(out).
		WithVersion(vmopts.V(o.release)).
		WithDefaultFlagsFile(o.flagsFile)

	if o.useEnv {
		envOpts := sourceenv.Options{Logger: logger}
		a.WithToolOptions(sourceenv.New(sourceenv.ToolOptions, envOpts)).
			WithExtraOptions(sourceenv.New(sourceenv.ExtraOptions, envOpts)).
			WithCreateModeOptions(sourceenv.New(sourceenv.AOTVMOptions, envOpts))
	}
	if o.resource != "" {
		dir, name := filepath.Split(filepath.Clean(o.resource))
		if dir == "" {
			dir = "."
		}
		a.WithResource(sourcefile.NewResource(os.DirFS(dir), name))
	}

	cfg, err := a.Parse(cmd.Context())
	if err != nil {
		return err
	}

	var dumpOpts []vmopts.DumpOption
	if o.origins {
		dumpOpts = append(dumpOpts, vmopts.WithOrigins())
	}
	switch o.format {
	case "text":
	case "json":
		dumpOpts = append(dumpOpts, vmopts.AsJSON())
	case "yaml":
		dumpOpts = append(dumpOpts, vmopts.AsYAML())
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}
	if err := vmopts.DumpEffective(out, cfg, dumpOpts...); err != nil {
		return err
	}

	if o.snapshot != "" {
		snap, err := vmopts.CreateSnapshot(cfg)
		if err != nil {
			return err
		}
		if err := vmopts.WriteSnapshot(snap, o.snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		logger.Info("snapshot written", zap.String("id", snap.ID), zap.String("path", o.snapshot))
	}
	return nil
}
