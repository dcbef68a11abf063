package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lililuanluan/weazer"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errDetected = errors.New("errors were detected")

var verifyOpts options

var verifyCommand = &cobra.Command{
	Use:          "verify <program.yaml>",
	Short:        "explore every execution of a program",
	Long:         ``,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, args []string) error {
		return verifyExec(args[0], &verifyOpts, false)
	},
}

var estimateOpts options

var estimateCommand = &cobra.Command{
	Use:          "estimate <program.yaml>",
	Short:        "estimate the number of executions of a program",
	Long:         ``,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, args []string) error {
		return verifyExec(args[0], &estimateOpts, true)
	},
}

func init() {
	verifyOpts.register(verifyCommand.Flags())
	estimateOpts.register(estimateCommand.Flags())
}

func verifyExec(path string, o *options, estimate bool) error {
	p, err := loadProgram(path)
	if err != nil {
		return err
	}
	opts, closeFiles, err := o.verifyOptions()
	if err != nil {
		return err
	}
	defer closeFiles()
	v, err := weazer.PrepareVerification(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var res *verifier.Result
	if estimate {
		res, err = v.Estimate(ctx, p)
	} else {
		res, err = v.Verify(ctx, p)
	}
	if res != nil {
		fmt.Print(res)
	}
	if err != nil {
		return err
	}
	if res.Error != nil {
		return errDetected
	}
	return nil
}
