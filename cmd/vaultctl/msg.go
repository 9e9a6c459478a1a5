package main

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"tonvault/internal/hashlock"
	"tonvault/internal/swap"
	"tonvault/internal/vault"
)

// defaultForwardTon is attached to deposit transfers (0.05 TON)
const defaultForwardTon = "50000000"

func commandMsg() *cli.Command {
	return &cli.Command{
		Name:  "msg",
		Usage: "build vault message bodies",
		Subcommands: []*cli.Command{
			commandMsgRegisterDeposit(),
			commandMsgDeposit(),
			commandMsgWithdraw(),
			commandMsgRefund(),
			commandMsgChangeAdmin(),
			commandMsgDestroy(),
		},
	}
}

func termsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "swap-id", Required: true},
		&cli.StringFlag{Name: "counterparty", Required: true, Usage: "EVM address of the other side"},
		&cli.StringFlag{Name: "owner", Required: true},
		&cli.StringFlag{Name: "amount", Required: true, Usage: "jetton base units"},
		&cli.UintFlag{Name: "withdrawal", Required: true, Usage: "UNIX time"},
		&cli.UintFlag{Name: "public-withdrawal", Required: true, Usage: "UNIX time"},
		&cli.UintFlag{Name: "cancellation", Required: true, Usage: "UNIX time"},
		&cli.UintFlag{Name: "public-cancellation", Required: true, Usage: "UNIX time"},
	}
}

func parseSwapID(s string) (swap.ID, error) {
	id, err := swap.ParseID(s)
	if err != nil {
		return id, fmt.Errorf("invalid swap id: %w", err)
	}
	return id, nil
}

// deadlineArg rejects times that do not fit the 32-bit on-chain field
func deadlineArg(name string, v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("--%s %d exceeds the 32-bit deadline range", name, v)
	}
	return uint32(v), nil
}

func termsArgs(c *cli.Context) (vault.DepositTerms, *big.Int, error) {
	var t vault.DepositTerms
	var err error

	if t.SwapID, err = parseSwapID(c.String("swap-id")); err != nil {
		return t, nil, err
	}
	if !common.IsHexAddress(c.String("counterparty")) {
		return t, nil, fmt.Errorf("invalid --counterparty %q", c.String("counterparty"))
	}
	t.Counterparty = common.HexToAddress(c.String("counterparty"))
	if t.Owner, err = addrArg(c, "owner"); err != nil {
		return t, nil, err
	}
	deadlines := make([]uint32, 0, 4)
	for _, name := range []string{"withdrawal", "public-withdrawal", "cancellation", "public-cancellation"} {
		d, err := deadlineArg(name, c.Uint(name))
		if err != nil {
			return t, nil, err
		}
		deadlines = append(deadlines, d)
	}
	t.Deadlines = swap.Deadlines{
		Withdrawal:         deadlines[0],
		PublicWithdrawal:   deadlines[1],
		Cancellation:       deadlines[2],
		PublicCancellation: deadlines[3],
	}
	if !t.Deadlines.Ordered() {
		return t, nil, fmt.Errorf("deadlines must be strictly increasing")
	}

	amount, err := amountArg(c, "amount")
	if err != nil {
		return t, nil, err
	}
	return t, amount, nil
}

func commandMsgRegisterDeposit() *cli.Command {
	return &cli.Command{
		Name:  "register-deposit",
		Usage: "register_deposit body sent straight to the vault",
		Flags: append(termsFlags(), queryIDFlag(), formatFlag()),
		Action: func(c *cli.Context) error {
			terms, amount, err := termsArgs(c)
			if err != nil {
				return err
			}
			body, err := vault.RegisterDeposit(vault.RegisterDepositParams{
				QueryID:      c.Uint64("query-id"),
				Amount:       amount,
				DepositTerms: terms,
			})
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}

func commandMsgDeposit() *cli.Command {
	flags := append(termsFlags(),
		queryIDFlag(),
		formatFlag(),
		&cli.StringFlag{Name: "vault", Required: true},
		&cli.StringFlag{Name: "response", Usage: "excess recipient, defaults to the owner"},
		&cli.StringFlag{Name: "forward-ton", Value: defaultForwardTon, Usage: "nanotons forwarded to the vault"},
	)
	return &cli.Command{
		Name:  "deposit",
		Usage: "jetton transfer to the owner's wallet that deposits into the vault",
		Flags: flags,
		Action: func(c *cli.Context) error {
			terms, amount, err := termsArgs(c)
			if err != nil {
				return err
			}
			vaultAddr, err := addrArg(c, "vault")
			if err != nil {
				return err
			}
			response := terms.Owner
			if c.String("response") != "" {
				if response, err = addrArg(c, "response"); err != nil {
					return err
				}
			}
			forwardTon, err := amountArg(c, "forward-ton")
			if err != nil {
				return err
			}

			body, err := vault.DepositTransfer(c.Uint64("query-id"), amount, vaultAddr, response, forwardTon, terms)
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}

func commandMsgWithdraw() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "withdraw_jetton body",
		Flags: []cli.Flag{
			queryIDFlag(),
			formatFlag(),
			&cli.StringFlag{Name: "recipient", Required: true},
			&cli.StringFlag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "swap-id", Usage: "optional swap to settle"},
		},
		Action: func(c *cli.Context) error {
			recipient, err := addrArg(c, "recipient")
			if err != nil {
				return err
			}
			amount, err := amountArg(c, "amount")
			if err != nil {
				return err
			}

			params := vault.WithdrawParams{
				QueryID:   c.Uint64("query-id"),
				Recipient: recipient,
				Amount:    amount,
			}
			if s := c.String("swap-id"); s != "" {
				id, err := parseSwapID(s)
				if err != nil {
					return err
				}
				params.SwapID = &id
			}

			body, err := vault.Withdraw(params)
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}

func commandMsgRefund() *cli.Command {
	return &cli.Command{
		Name:  "refund",
		Usage: "refund_jetton body carrying the secret",
		Flags: []cli.Flag{
			queryIDFlag(),
			formatFlag(),
			&cli.StringFlag{Name: "recipient", Required: true},
			&cli.StringFlag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "secret", Required: true, Usage: "hex encoded secret"},
		},
		Action: func(c *cli.Context) error {
			recipient, err := addrArg(c, "recipient")
			if err != nil {
				return err
			}
			amount, err := amountArg(c, "amount")
			if err != nil {
				return err
			}
			secret, err := hashlock.ParseSecretHex(c.String("secret"))
			if err != nil {
				return err
			}

			body, err := vault.Refund(vault.RefundParams{
				QueryID:   c.Uint64("query-id"),
				Recipient: recipient,
				Amount:    amount,
				Secret:    secret,
			})
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}

func commandMsgChangeAdmin() *cli.Command {
	return &cli.Command{
		Name:  "change-admin",
		Usage: "change_admin body",
		Flags: []cli.Flag{
			queryIDFlag(),
			formatFlag(),
			&cli.StringFlag{Name: "admin", Required: true},
		},
		Action: func(c *cli.Context) error {
			admin, err := addrArg(c, "admin")
			if err != nil {
				return err
			}
			body, err := vault.ChangeAdmin(c.Uint64("query-id"), admin)
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}

func commandMsgDestroy() *cli.Command {
	return &cli.Command{
		Name:  "destroy",
		Usage: "admin message that sends the whole balance to recipient and destroys the vault",
		Flags: []cli.Flag{
			queryIDFlag(),
			formatFlag(),
			&cli.StringFlag{Name: "recipient", Required: true},
		},
		Action: func(c *cli.Context) error {
			recipient, err := addrArg(c, "recipient")
			if err != nil {
				return err
			}
			body, err := vault.Destroy(c.Uint64("query-id"), recipient, big.NewInt(0))
			if err != nil {
				return err
			}
			return printBOC(c, body)
		},
	}
}
