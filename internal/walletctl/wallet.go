package walletctl

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/weavekeeper/internal/arweave"
	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func (a *App) addressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the upload wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := a.wallet(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.Address())
			return nil
		},
	}
}

func (a *App) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the balance of an address, the upload wallet by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var address string
			if len(args) == 1 {
				address = args[0]
			} else {
				w, err := a.wallet(ctx)
				if err != nil {
					return err
				}
				address = w.Address()
			}

			winston, err := a.client().Balance(ctx, address)
			if err != nil {
				return fmt.Errorf("balance: %w", err)
			}
			ar, err := arweave.WinstonToAR(winston)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address: %s\n", address)
			fmt.Fprintf(out, "Balance: %s AR (%s winston)\n", ar, winston)
			return nil
		},
	}
}

func (a *App) generateCommand() *cobra.Command {
	var (
		out   string
		bits  int
		force bool
		mint  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new wallet key",
		Long: "Generate a new RSA wallet key. The JWK is written to --out, or to " +
			"standard output when --out is empty. --mint funds the new address on a development node.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mint != "" {
				if err := a.requireDevelopment(); err != nil {
					return err
				}
				if _, err := strconv.ParseUint(mint, 10, 64); err != nil {
					return fmt.Errorf("%w: --mint must be a winston amount", common.ErrValidation)
				}
			}
			if out != "" && !force {
				if _, err := a.fs.Stat(out); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", out)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			w, err := arweave.GenerateWallet(bits)
			if err != nil {
				return err
			}
			jwk, err := w.MarshalJWK()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if out == "" {
				fmt.Fprintln(stdout, string(jwk))
			} else {
				if err := a.fs.MkdirAll(filepath.Dir(out), 0o700); err != nil {
					return err
				}
				if err := afero.WriteFile(a.fs, out, jwk, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Wallet written to %s\n", out)
			}
			fmt.Fprintf(stdout, "Address: %s\n", w.Address())

			if mint != "" {
				balance, err := a.fund(cmd, w.Address(), mint)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Minted %s winston, balance %s\n", mint, balance)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write the JWK to")
	cmd.Flags().IntVar(&bits, "bits", arweave.DefaultKeyBits, "RSA key size")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	cmd.Flags().StringVar(&mint, "mint", "", "winston to mint for the new address (development only)")
	return cmd
}

func (a *App) mintCommand() *cobra.Command {
	var (
		address string
		inAR    bool
	)

	cmd := &cobra.Command{
		Use:   "mint <amount>",
		Short: "Mint test tokens on a development node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDevelopment(); err != nil {
				return err
			}

			winston := args[0]
			if inAR {
				var err error
				if winston, err = arweave.ARToWinston(args[0]); err != nil {
					return fmt.Errorf("%w: %v", common.ErrValidation, err)
				}
			}
			if _, err := strconv.ParseUint(winston, 10, 64); err != nil {
				return fmt.Errorf("%w: amount must be a whole number of winston", common.ErrValidation)
			}

			if address == "" {
				w, err := a.wallet(cmd.Context())
				if err != nil {
					return err
				}
				address = w.Address()
			}

			balance, err := a.fund(cmd, address, winston)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Minted %s winston to %s, balance %s\n", winston, address, balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "recipient, the upload wallet by default")
	cmd.Flags().BoolVar(&inAR, "ar", false, "interpret the amount in AR instead of winston")
	return cmd
}

// fund mints winston to address and mines a block so the balance settles.
func (a *App) fund(cmd *cobra.Command, address, winston string) (string, error) {
	c := a.client()
	balance, err := c.Mint(cmd.Context(), address, winston)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	if err := c.Mine(cmd.Context()); err != nil {
		return "", fmt.Errorf("mine: %w", err)
	}
	return balance, nil
}

func (a *App) requireDevelopment() error {
	if !a.cfg.IsDevelopment() {
		return fmt.Errorf("%w: minting is only available in the development environment", common.ErrConfig)
	}
	return nil
}
