package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alovak/paysim/internal/apiclient"
	"github.com/alovak/paysim/processor/models"
)

type clientOptions struct {
	server string
	token  string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.server, "server", "http://localhost:8000", "simulator base URL")
	cmd.PersistentFlags().StringVar(&o.token, "token", "", "bearer token (see paysim token)")
}

func (o *clientOptions) client() *apiclient.Client {
	c := apiclient.New(o.server, nil)
	c.Token = o.token
	return c
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func customersCmd() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Manage customers on a running simulator",
	}
	opts.bind(cmd)

	var req models.CreateCustomer
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := opts.client().CreateCustomer(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, customer)
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "full name")
	create.Flags().StringVar(&req.Email, "email", "", "email address")
	create.Flags().StringVar(&req.Phone, "phone", "", "phone number")

	var card models.CreateCard
	addCard := &cobra.Command{
		Use:   "add-card [customer-id]",
		Short: "Register a card for a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			card.CustomerID = args[0]
			out, err := opts.client().CreateCard(cmd.Context(), card)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addCard.Flags().StringVar(&card.PAN, "pan", "", "card number")

	cmd.AddCommand(create, addCard)
	return cmd
}

func chargesCmd() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "charges",
		Short: "Create and inspect charges on a running simulator",
	}
	opts.bind(cmd)

	var (
		req    models.CreateCharge
		amount string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Attempt a charge",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			req.Amount = a
			charge, err := opts.client().CreateCharge(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, charge)
		},
	}
	create.Flags().StringVar(&req.CustomerID, "customer", "", "customer id")
	create.Flags().StringVar(&req.CardID, "card", "", "card id")
	create.Flags().StringVar(&amount, "amount", "", "amount, e.g. 149.90")
	create.Flags().StringVar(&req.Currency, "currency", "", "ISO currency (server default when empty)")
	create.Flags().StringVar(&req.Description, "description", "", "charge description")

	get := &cobra.Command{
		Use:   "get [charge-id]",
		Short: "Show a charge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			charge, err := opts.client().GetCharge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, charge)
		},
	}

	var reason string
	refund := &cobra.Command{
		Use:   "refund [charge-id]",
		Short: "Refund an approved charge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			charge, err := opts.client().RefundCharge(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return printJSON(cmd, charge)
		},
	}
	refund.Flags().StringVar(&reason, "reason", "", "status message to record")

	cmd.AddCommand(create, get, refund)
	return cmd
}
