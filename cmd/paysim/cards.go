package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alovak/paysim/internal/cardgen"
)

func cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Offline card number tools",
	}
	cmd.AddCommand(cardsGenerateCmd(), cardsTestCmd(), cardsCheckCmd())
	return cmd
}

func cardsGenerateCmd() *cobra.Command {
	var (
		bin    string
		count  int
		length int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Luhn-valid numbers for a BIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := cardgen.GenerateBatch(bin, count, length)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"cards": numbers, "bin": bin, "length": length,
				})
			}
			for _, n := range numbers {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "bin", "411111", "issuer prefix")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many numbers")
	cmd.Flags().IntVar(&length, "length", 16, "number length (13-19)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func cardsTestCmd() *cobra.Command {
	var (
		bin    string
		last4  string
		length int
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Generate one test card, optionally ending in --last4",
		Long: `Generate one test card.

The rules engine approves cards whose last four digits are even and whose BIN
is not 400000, so --last4 picks the outcome:
  paysim cards test --last4 4242   # approved
  paysim cards test --last4 1111   # rejected: card does not meet requirements`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				number string
				err    error
			)
			if last4 != "" {
				number, err = cardgen.GenerateWithSuffix(bin, last4, length)
			} else {
				number, err = cardgen.Generate(bin, length)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PAN: %s\nNETWORK: %s\n", number, cardgen.Network(number))
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "bin", "411111", "issuer prefix")
	cmd.Flags().StringVar(&last4, "last4", "", "required last four digits")
	cmd.Flags().IntVar(&length, "length", 16, "number length (13-19)")
	return cmd
}

func cardsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [pan]",
		Short: "Validate a card number and show what would be stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rec, err := cardgen.Build(args[0])
			if err != nil {
				fmt.Fprintf(out, "VALID: false\nREASON: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "VALID: true\nMASKED: %s\nBIN: %s\nLAST4: %s\nNETWORK: %s\n",
				rec.PANMasked, rec.BIN, rec.Last4, rec.Network)
			return nil
		},
	}
}
