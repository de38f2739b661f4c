package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/likesvc"
)

var (
	serveAddr string
	serveSeed uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the likelihood and prior over gRPC for an external sampler",
	Long: `Starts the xuvcal.Likelihood gRPC service for one star and combination.
A sampler calls Evaluate for the log-likelihood and LnPrior, PriorTransform
or SamplePrior for the prior. Every evaluation is recorded in the run.`,
	RunE: runServe,
}

func init() {
	addStarFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default $XUVCAL_ADDR or localhost:50071)")
	serveCmd.Flags().Uint64Var(&serveSeed, "seed", 1, "Seed for unseeded SamplePrior requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	space, err := sess.star.Space()
	if err != nil {
		return err
	}
	svc, err := likesvc.NewService(likesvc.Config{
		Model:       sess.model,
		Space:       space,
		Store:       sess.store,
		RunID:       sess.run.RunID,
		Combination: combination,
		Seed:        serveSeed,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", serveAddr, err)
	}
	srv := likesvc.NewServer(lis, svc, logger)
	fmt.Printf("Serving %s (%s) run %s on %s\n", sess.star.Name, combination, sess.run.RunID, srv.Addr())
	sess.logEvent("serve", "ok", "started", map[string]string{"addr": srv.Addr()})

	err = srv.Serve(cmd.Context())
	total, failed, cerr := sess.store.CountEvaluations(sess.run.RunID)
	if cerr != nil {
		logger.Warn(cerr.Error())
	}
	detail := map[string]int{"evaluations": total, "failed": failed}
	if err != nil {
		sess.logEvent("serve", "failed", err.Error(), detail)
		return err
	}
	sess.logEvent("serve", "ok", "stopped", detail)
	return nil
}
