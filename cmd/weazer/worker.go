package main

import (
	"net"
	"os"
	"os/signal"

	"github.com/lililuanluan/weazer"
	"github.com/lililuanluan/weazer/remote"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	workerOpts options
	listenAddr string
)

var workerCommand = &cobra.Command{
	Use:          "worker <program.yaml>",
	Short:        "explore branches sent by a verification running elsewhere",
	Long:         `The worker must be given the same program and exploration flags as the verification that forwards branches to it.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, args []string) error {
		return workerExec(args[0])
	},
}

func init() {
	workerOpts.register(workerCommand.Flags())
	workerCommand.Flags().StringVar(&listenAddr, "listen", ":7070", "address to serve on")
}

func workerExec(path string) error {
	p, err := loadProgram(path)
	if err != nil {
		return err
	}
	opts, closeFiles, err := workerOpts.verifyOptions()
	if err != nil {
		return err
	}
	defer closeFiles()
	v, err := weazer.PrepareVerification(opts...)
	if err != nil {
		return err
	}
	s, err := remote.NewServer(p, v.Config())
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrapf(err, "listening on %v", listenAddr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Info("stopping worker")
		s.Stop()
	}()
	return s.Serve(lis)
}
