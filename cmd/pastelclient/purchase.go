package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/purchase"
)

func purchaseCmd() *cobra.Command {
	var (
		credits         int64
		trackingAddress string
		burnAddress     string
		maxPerCreditPSL float64
		maxTotalPSL     float64
		maxDelta        float64
		authorizedIDs   []string
	)

	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Purchase a prepaid inference credit pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp()
			if err != nil {
				return err
			}

			ids := make([]protocol.Identity, len(authorizedIDs))
			for i, s := range authorizedIDs {
				ids[i] = protocol.Identity(s)
			}
			if len(ids) == 0 {
				ids = []protocol.Identity{a.identity}
			}

			a.metrics.PurchaseStarted()
			defer a.metrics.PurchaseFinished()

			ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
			defer cancel()

			engine := a.purchaseEngine()
			res := engine.Purchase(ctx, purchase.Params{
				RequestedCredits:    credits,
				AuthorizedPastelIDs: ids,
				TrackingAddress:     trackingAddress,
				BurnAddress:         burnAddress,
				MaxPerCreditPSL:     maxPerCreditPSL,
				MaxTotalPSL:         maxTotalPSL,
				MaxDelta:            maxDelta,
			}, a.cfg.TargetValuePerCreditUSD, a.cfg.TargetProfitMargin)

			a.metrics.ObservePurchaseStage(string(res.Stage))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("purchase ended at stage %s: %w", res.Stage, res.Err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&credits, "credits", 0, "number of inference credits to purchase")
	cmd.Flags().StringVar(&trackingAddress, "tracking-address", "", "PSL address holding funds for the burn transaction")
	cmd.Flags().StringVar(&burnAddress, "burn-address", "", "network burn address for this environment")
	cmd.Flags().Float64Var(&maxPerCreditPSL, "max-per-credit-psl", 0, "ceiling on PSL price per credit")
	cmd.Flags().Float64Var(&maxTotalPSL, "max-total-psl", 0, "ceiling on total PSL spent")
	cmd.Flags().Float64Var(&maxDelta, "max-delta", 0.25, "maximum fractional deviation from the fair-market rate to accept")
	cmd.Flags().StringSliceVar(&authorizedIDs, "authorized-id", nil, "pastelid authorized to use the resulting credit pack (repeatable)")
	_ = cmd.MarkFlagRequired("credits")
	_ = cmd.MarkFlagRequired("tracking-address")
	_ = cmd.MarkFlagRequired("burn-address")

	return cmd
}
