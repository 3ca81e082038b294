package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/outofforest/diskvideo"
	"github.com/outofforest/diskvideo/config"
	"github.com/outofforest/diskvideo/snapshot"
	"github.com/outofforest/diskvideo/types"
)

const usage = `usage: diskvideo <command> [flags]

commands:
  fill      draw test pattern through disk video, verify it and optionally save a snapshot
  inspect   print information stored in a snapshot
`

func run(ctx context.Context, out, errOut io.Writer, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "fill":
		err = cmdFill(ctx, out, args[1:])
	case "inspect":
		err = cmdInspect(ctx, out, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

type fillOptions struct {
	configPath string
	mode       string
	width      int64
	height     int64
	colors     int
	medium     string
	cacheKiB   int64
	save       string
}

func parseFillFlags(args []string) (fillOptions, error) {
	flagSet := flag.NewFlagSet("fill", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var opts fillOptions
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "Config file (yaml or jsonc)")
	flagSet.StringVarP(&opts.mode, "mode", "m", diskvideo.ModePlain.String(), "Mode: plain, targa or potential")
	flagSet.Int64VarP(&opts.width, "width", "x", 640, "Image width")
	flagSet.Int64VarP(&opts.height, "height", "y", 480, "Image height")
	flagSet.IntVar(&opts.colors, "colors", 256, "Number of colors")
	flagSet.StringVar(&opts.medium, "medium", "", "Medium overriding the config: memory, disk or kv")
	flagSet.Int64Var(&opts.cacheKiB, "cache-kib", 0, "Cache size in KiB overriding the config")
	flagSet.StringVarP(&opts.save, "save", "o", "", "Save snapshot of the image to the file")

	if err := flagSet.Parse(args); err != nil {
		return fillOptions{}, errors.WithStack(err)
	}
	if flagSet.NArg() > 0 {
		return fillOptions{}, errors.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return opts, nil
}

func loadConfig(opts fillOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if opts.medium != "" {
		cfg.Medium = opts.medium
	}
	if opts.cacheKiB != 0 {
		cfg.CacheKiB = opts.cacheKiB
	}
	return cfg, cfg.Validate()
}

func cmdFill(ctx context.Context, out io.Writer, args []string) error {
	opts, err := parseFillFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	sessionOpts, err := cfg.Options(log)
	if err != nil {
		return err
	}
	sessionOpts.Width = opts.width
	sessionOpts.Height = opts.height
	sessionOpts.Colors = opts.colors

	var s *diskvideo.Session
	switch opts.mode {
	case diskvideo.ModePlain.String():
		s, err = diskvideo.Open(ctx, sessionOpts)
	case diskvideo.ModeTarga.String():
		s, err = diskvideo.OpenTarga(ctx, sessionOpts, targaHeader(opts.width, opts.height))
	case diskvideo.ModePotential.String():
		s, err = diskvideo.OpenPotential(ctx, sessionOpts)
	default:
		return errors.Errorf("unknown mode %q", opts.mode)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	p := pattern{session: s}
	if err := p.draw(ctx); err != nil {
		return err
	}
	mismatches, err := p.verify(ctx)
	if err != nil {
		return err
	}

	if opts.save != "" {
		if err := snapshot.Save(opts.save, s); err != nil {
			return err
		}
	}

	stats := s.Stats()
	fmt.Fprintf(out, "mode:        %s\n", s.Mode())
	fmt.Fprintf(out, "image:       %dx%d, %d colors\n", s.Width(), s.Height(), s.Colors())
	fmt.Fprintf(out, "medium:      %s\n", s.Medium())
	fmt.Fprintf(out, "store:       %s\n", humanize.IBytes(uint64(s.Geometry().StoreBlocks()*types.BlockLen)))
	fmt.Fprintf(out, "cache:       %s hits, %s misses, %s evictions, %s blocks flushed\n",
		humanize.Comma(int64(stats.Cache.Hits)), humanize.Comma(int64(stats.Cache.Misses)),
		humanize.Comma(int64(stats.Cache.Evictions)), humanize.Comma(int64(stats.Cache.Flushed)))
	fmt.Fprintf(out, "store I/O:   %s reads, %s writes\n",
		humanize.Comma(int64(stats.Store.Reads)), humanize.Comma(int64(stats.Store.Writes)))
	if opts.save != "" {
		fmt.Fprintf(out, "snapshot:    %s\n", opts.save)
	}

	if mismatches > 0 {
		return errors.Errorf("%d pixels read back differ from the pattern", mismatches)
	}
	return s.Close()
}

func cmdInspect(ctx context.Context, out io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("inspect", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	verify := flagSet.Bool("verify", false, "Decompress the snapshot and verify its checksum")

	if err := flagSet.Parse(args); err != nil {
		return errors.WithStack(err)
	}
	if flagSet.NArg() != 1 {
		return errors.New("exactly one snapshot file is expected")
	}
	path := flagSet.Arg(0)

	info, err := snapshot.Stat(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "mode:        %s\n", info.Mode)
	fmt.Fprintf(out, "image:       %dx%d, %d colors\n", info.Width, info.Height, info.Colors)
	fmt.Fprintf(out, "header:      %d bytes\n", info.HeaderLength)
	fmt.Fprintf(out, "size:        %s (%s compressed)\n",
		humanize.IBytes(uint64(info.Size)), humanize.IBytes(uint64(info.CompressedSize)))
	fmt.Fprintf(out, "checksum:    %016x\n", info.Checksum)

	if !*verify {
		return nil
	}

	log, err := config.Default().Logger()
	if err != nil {
		return err
	}
	s, err := snapshot.Load(ctx, path, diskvideo.Options{
		Logger:   log,
		Reporter: diskvideo.NopReporter,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "verified:    ok")
	return s.Close()
}
