package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"tonvault/internal/blockchain/evm"
	"tonvault/internal/config"
)

func evmFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rpc",
			EnvVars: []string{"EVM_RPC_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "token",
			EnvVars: []string{"EVM_TOKEN_ADDRESS"},
		},
	}
}

func dialEVM(c *cli.Context) (*evm.Client, error) {
	if c.String("rpc") == "" {
		return nil, fmt.Errorf("--rpc is required")
	}
	return evm.NewClient(config.EVMConfig{
		RPCEndpoint:  c.String("rpc"),
		TokenAddress: c.String("token"),
	}, newLogger(c))
}

func hexAddrArg(c *cli.Context, name string) (common.Address, error) {
	v := c.String(name)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid --%s %q", name, v)
	}
	return common.HexToAddress(v), nil
}

func commandEVM() *cli.Command {
	return &cli.Command{
		Name:  "evm",
		Usage: "inspect the EVM leg of a swap",
		Subcommands: []*cli.Command{
			{
				Name:  "escrow-address",
				Usage: "predict the escrow clone deployed for a swap id",
				Flags: append(evmFlags(),
					&cli.StringFlag{Name: "factory", EnvVars: []string{"EVM_ESCROW_FACTORY"}, Required: true},
					&cli.StringFlag{Name: "implementation", EnvVars: []string{"EVM_ESCROW_IMPLEMENTATION"}, Required: true},
					&cli.StringFlag{Name: "swap-id", Required: true},
				),
				Action: func(c *cli.Context) error {
					factory, err := hexAddrArg(c, "factory")
					if err != nil {
						return err
					}
					impl, err := hexAddrArg(c, "implementation")
					if err != nil {
						return err
					}
					id, err := parseSwapID(c.String("swap-id"))
					if err != nil {
						return err
					}

					addr, err := evm.EscrowAddress(factory, impl, id)
					if err != nil {
						return err
					}
					fmt.Println(addr.Hex())

					if c.String("rpc") == "" {
						return nil
					}
					client, err := dialEVM(c)
					if err != nil {
						return err
					}
					defer client.Close()

					deployed, err := client.IsContractDeployed(c.Context, addr)
					if err != nil {
						return err
					}
					fmt.Printf("deployed: %v\n", deployed)
					if deployed && c.String("token") != "" {
						balance, err := client.GetTokenBalance(c.Context, addr)
						if err != nil {
							return err
						}
						fmt.Printf("token balance: %s\n", balance)
					}
					return nil
				},
			},
			{
				Name:  "balance",
				Usage: "native and token balance of an address",
				Flags: append(evmFlags(),
					&cli.StringFlag{Name: "holder", Required: true},
				),
				Action: func(c *cli.Context) error {
					holder, err := hexAddrArg(c, "holder")
					if err != nil {
						return err
					}
					client, err := dialEVM(c)
					if err != nil {
						return err
					}
					defer client.Close()

					native, err := client.GetETHBalance(c.Context, holder)
					if err != nil {
						return err
					}
					fmt.Printf("native: %s\n", native)

					if c.String("token") != "" {
						balance, err := client.GetTokenBalance(c.Context, holder)
						if err != nil {
							return err
						}
						fmt.Printf("token:  %s\n", balance)
					}
					return nil
				},
			},
			{
				Name:  "wait",
				Usage: "wait for a transaction to be mined",
				Flags: append(evmFlags(),
					&cli.StringFlag{Name: "hash", Required: true},
					&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute},
				),
				Action: func(c *cli.Context) error {
					client, err := dialEVM(c)
					if err != nil {
						return err
					}
					defer client.Close()

					receipt, err := client.WaitForTransaction(c.Context, common.HexToHash(c.String("hash")), c.Duration("timeout"))
					if err != nil {
						return err
					}
					fmt.Printf("block: %d status: %d gas: %d\n", receipt.BlockNumber.Uint64(), receipt.Status, receipt.GasUsed)
					return nil
				},
			},
		},
	}
}
