package main

import (
	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/tcpserver"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newPeerCmd() *cobra.Command {
	var (
		addr   string
		config tcpserver.EchoConfig
	)

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Run an echo peer for streamclient to talk to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewWriterConsoleLogger(cmd.ErrOrStderr(), "streamclient-peer", zerolog.InfoLevel)
			defer log.Close()

			srv := tcpserver.NewTCPServer("peer", addr, log, tcpserver.NewEchoSessionFunc(log, config))
			if err := srv.Start(); err != nil {
				return err
			}
			defer srv.Stop()

			<-cmd.Context().Done()
			log.Info("peer shutting down")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":11000", "listen address")
	f.IntVar(&config.ChunkSize, "chunk-size", 0, "split each echo into chunks of this many bytes")
	f.DurationVar(&config.ChunkDelay, "chunk-delay", 0, "delay between echoed chunks")
	f.BoolVar(&config.CloseAfterEcho, "close-after-echo", false, "close the connection after the first echo")
	f.BoolVar(&config.Silent, "silent", false, "read but never reply")

	return cmd
}
