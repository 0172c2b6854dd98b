package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/wrybill/memcheck"
	"github.com/wrybill/memcheck/config"
	"github.com/wrybill/memcheck/internal/format"
	"github.com/wrybill/memcheck/ir"
	"github.com/wrybill/memcheck/render"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	configPath = flag.String("config", "", "tool configuration `file` (YAML)")
	noColor    = flag.Bool("no-color", false, "disable colored diagnostics")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Specify a program model file on the command line")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Fatal("Failed to close", f)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Loading config failed: %v", err)
		}
	}
	if *noColor || cfg.NoColor {
		format.SetEnabled(false)
	}
	logger := cfg.Logger()

	prog, err := ir.DecodeFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Loading program model failed: %v", err)
	}
	logger.Infof("loaded %d functions", len(prog.Funcs))

	res, err := memcheck.Analyze(memcheck.AnalysisConfig{
		Program:            prog,
		Entries:            cfg.Entries,
		ContextDepth:       cfg.ContextDepth,
		MaxContextsPerFunc: cfg.MaxContextsPerFunc,
		MaxProjectionDepth: cfg.MaxProjectionDepth,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	render.Diagnostics(os.Stdout, res)
	render.Summary(os.Stdout, res)

	if len(res.UseAfterFree()) > 0 || len(res.MultiDrops()) > 0 {
		os.Exit(1)
	}
}
