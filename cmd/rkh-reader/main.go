// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/f-secure-foundry/rkh-reader/internal/batch"
	"github.com/f-secure-foundry/rkh-reader/internal/chain"
	"github.com/f-secure-foundry/rkh-reader/internal/rkh"
	"github.com/f-secure-foundry/rkh-reader/internal/source"
)

type Config struct {
	pipeline    string
	hash        string
	offset      uint32
	failOnBreak bool
	strict      bool

	fat     bool
	github  string
	release string
	token   string

	jobs    int
	timeout time.Duration

	expect    string
	fuseOrder bool
	qr        bool

	debug bool
}

func (conf *Config) flags(f *pflag.FlagSet) {
	f.StringVarP(&conf.pipeline, "pipeline", "p", rkh.Auto.String(), "chain recovery pipeline (auto, raw, elf, scan)")
	f.StringVar(&conf.hash, "hash", "", "digest algorithm (sha256, sha384), defaults to the pipeline one")
	f.Uint32VarP(&conf.offset, "offset", "o", 0, "signed blob offset for the raw pipeline")
	f.BoolVar(&conf.failOnBreak, "fail-on-break", false, "fail the scan pipeline on a chain break")
	f.BoolVar(&conf.strict, "strict", false, "check that certificates are well formed DER")

	f.BoolVar(&conf.fat, "fat", false, "treat inputs as FAT partition images")
	f.StringVar(&conf.github, "github", "", "analyze release assets of a GitHub repository (owner/name)")
	f.StringVarP(&conf.release, "release", "r", source.LatestRelease, "GitHub release tag")
	f.StringVar(&conf.token, "token", os.Getenv(githubTokenEnv), "GitHub API token (default $"+githubTokenEnv+")")

	f.IntVarP(&conf.jobs, "jobs", "j", defaultJobs, "concurrent analyses (default number of CPUs)")
	f.DurationVar(&conf.timeout, "timeout", 0, "abort the run after this duration")

	f.StringVarP(&conf.expect, "expect", "e", "", "expected RKH, mismatches fail the run")
	f.BoolVar(&conf.fuseOrder, "fuse-order", false, "print the RKH in fuse read-back order")
	f.BoolVar(&conf.qr, "qr", false, "print the RKH as a QR code")

	f.BoolVarP(&conf.debug, "debug", "d", false, "debug logging")
}

func (conf *Config) analyzer(log logrus.FieldLogger) (a *rkh.Analyzer, err error) {
	a = &rkh.Analyzer{
		Offset: conf.offset,
		Scan:   chain.ScanOptions{FailOnBreak: conf.failOnBreak},
		Strict: conf.strict,
		Log:    log,
	}

	if a.Pipeline, err = rkh.ParsePipeline(conf.pipeline); err != nil {
		return nil, err
	}

	if len(conf.hash) > 0 {
		alg, err := rkh.ParseAlgorithm(conf.hash)

		if err != nil {
			return nil, err
		}

		a.Algorithm = &alg
	}

	return
}

func (conf *Config) sources(args []string, log logrus.FieldLogger) (sources []source.Source) {
	if len(conf.github) > 0 {
		sources = append(sources, &source.GitHub{
			Repository: conf.github,
			Release:    conf.release,
			Token:      conf.token,
			Log:        log,
		})
	}

	for _, arg := range args {
		sources = append(sources, &source.Path{
			Path:     arg,
			FAT:      conf.fat,
			Archives: true,
		})
	}

	return
}

func newLogger(out io.Writer, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

func newCommand() *cobra.Command {
	conf := &Config{}

	cmd := &cobra.Command{
		Use:     "rkh-reader [flags] [path...]",
		Short:   short,
		Long:    long,
		Example: example,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(conf.github) == 0 {
				return errors.New("no input, pass a path or --github")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), conf, args, cmd.OutOrStdout())
		},
	}

	conf.flags(cmd.Flags())

	return cmd
}

func run(ctx context.Context, conf *Config, args []string, out io.Writer) (err error) {
	log := newLogger(out, conf.debug)

	if ctx == nil {
		ctx = context.Background()
	}

	if conf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.timeout)
		defer cancel()
	}

	analyzer, err := conf.analyzer(log)

	if err != nil {
		return
	}

	r := &reporter{
		out:  out,
		fuse: conf.fuseOrder,
		qr:   conf.qr,
	}

	if len(conf.expect) > 0 {
		if r.expect, err = parseHash(conf.expect); err != nil {
			return
		}
	}

	var inputs []source.Input

	for _, src := range conf.sources(args, log) {
		in, err := src.Inputs(ctx)

		if err != nil {
			return err
		}

		inputs = append(inputs, in...)
	}

	log.Debugf("analyzing %d inputs", len(inputs))

	runner := &batch.Runner{
		Analyzer: analyzer,
		Jobs:     conf.jobs,
		Log:      log,
	}

	results, runErr := runner.Run(ctx, inputs)

	for _, res := range results {
		if err = r.write(res); err != nil {
			return
		}
	}

	if runErr != nil {
		return runErr
	}

	if r.mismatched > 0 {
		return errors.Errorf("%d of %d root key hashes do not match %s", r.mismatched, len(results), r.expect)
	}

	log.Debugf("%d analyzed, %d failed", len(results), r.failed)

	return
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
