package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pastelnetwork/supernode-client/internal/inference"
)

func inferCmd() *cobra.Command {
	var (
		creditPackTxid string
		model          string
		inferenceType  string
		paramsJSON     string
		inputFile      string
		maxCostCredits float64
		burnAddress    string
		runAudit       bool
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Discover a supernode offering a model and submit one inference request",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp()
			if err != nil {
				return err
			}

			var params map[string]interface{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params as JSON: %w", err)
				}
			}

			var input []byte
			if inputFile != "" {
				input, err = os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("read --input file: %w", err)
				}
			}

			engine := a.inferenceEngine()
			ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
			defer cancel()

			found, err := engine.Discover(ctx, model, inferenceType, params)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}

			res := engine.Submit(ctx, found.PeerURL, found.PeerID, inference.Params{
				CreditPackTxid: creditPackTxid,
				Model:          model,
				InferenceType:  inferenceType,
				Parameters:     params,
				Input:          input,
				MaxCostCredits: maxCostCredits,
				BurnAddress:    burnAddress,
			})

			if res.Err != nil {
				a.metrics.ObservePeerFailure(found.PeerURL)
				enc := json.NewEncoder(cmd.ErrOrStderr())
				enc.SetIndent("", "  ")
				_ = enc.Encode(res)
				return fmt.Errorf("inference request failed: %w", res.Err)
			}

			if runAudit {
				verdict, err := a.auditValidator().Validate(ctx, found.PeerID, res.UsageResponse, res.OutputResult)
				if err != nil {
					return fmt.Errorf("audit: %w", err)
				}
				for field, agree := range verdict.ResponseValidation {
					if !agree {
						a.metrics.ObserveAuditDisagreement(field)
					}
				}
				for field, agree := range verdict.ResultValidation {
					if !agree {
						a.metrics.ObserveAuditDisagreement(field)
					}
				}
				enc := json.NewEncoder(cmd.ErrOrStderr())
				enc.SetIndent("", "  ")
				if err := enc.Encode(verdict); err != nil {
					return err
				}
			}

			_, err = cmd.OutOrStdout().Write(res.Decoded)
			return err
		},
	}

	cmd.Flags().StringVar(&creditPackTxid, "credit-pack-txid", "", "registration txid of the credit pack to spend against")
	cmd.Flags().StringVar(&model, "model", "", "requested model name")
	cmd.Flags().StringVar(&inferenceType, "type", "text_completion", "inference type (text_completion, text_to_image, embedding_document, ...)")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "model parameters as a JSON object")
	cmd.Flags().StringVar(&inputFile, "input", "", "path to the input payload")
	cmd.Flags().Float64Var(&maxCostCredits, "max-cost-credits", 0, "abort if the quoted cost exceeds this many credits")
	cmd.Flags().StringVar(&burnAddress, "burn-address", "", "network burn address for this environment")
	cmd.Flags().BoolVar(&runAudit, "audit", false, "independently re-verify the responder's claims against four XOR-closest peers after completion")
	_ = cmd.MarkFlagRequired("credit-pack-txid")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("burn-address")

	return cmd
}
