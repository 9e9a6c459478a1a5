package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"tonvault/internal/blockchain/tonchain"
	"tonvault/internal/vault"
)

type swapOutput struct {
	QueryID      uint64 `json:"queryId"`
	SwapID       string `json:"swapId"`
	Counterparty string `json:"counterparty"`
	Owner        string `json:"owner"`
	Amount       string `json:"amount"`
	CreatedAt    uint32 `json:"createdAt"`
	Status       string `json:"status"`
}

type stateOutput struct {
	Vault        string       `json:"vault"`
	Admin        string       `json:"admin"`
	TotalSupply  string       `json:"totalSupply"`
	JettonMaster string       `json:"jettonMaster"`
	JettonWallet string       `json:"jettonWallet"`
	Stopped      bool         `json:"stopped"`
	Swaps        []swapOutput `json:"swaps"`
}

func commandState() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "read the vault state through a lite server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "vault",
				EnvVars:  []string{"TON_VAULT_ADDRESS"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "network",
				EnvVars: []string{"TON_NETWORK"},
				Value:   "testnet",
			},
			&cli.StringFlag{
				Name:    "config-url",
				EnvVars: []string{"TON_CONFIG_URL"},
				Usage:   "lite server global config, overrides --network",
			},
		},
		Action: func(c *cli.Context) error {
			vaultAddr, err := addrArg(c, "vault")
			if err != nil {
				return err
			}

			configURL := c.String("config-url")
			if configURL == "" {
				switch c.String("network") {
				case "mainnet":
					configURL = tonchain.MainnetConfigURL
				case "testnet":
					configURL = tonchain.TestnetConfigURL
				default:
					return fmt.Errorf("unknown network %q", c.String("network"))
				}
			}

			logger := newLogger(c)
			defer logger.Sync()

			client, err := tonchain.Dial(c.Context, configURL, logger)
			if err != nil {
				return err
			}
			reader := vault.NewClient(vault.NewLiteReader(client.API()), vaultAddr, logger)

			st, err := reader.ReadVaultState(c.Context)
			if err != nil {
				return err
			}

			out := stateOutput{
				Vault:   vaultAddr.String(),
				Stopped: st.Stopped,
				Swaps:   make([]swapOutput, 0, len(st.Swaps)),
			}
			if st.Admin != nil {
				out.Admin = st.Admin.String()
			}
			if st.TotalSupply != nil {
				out.TotalSupply = st.TotalSupply.String()
			}
			if st.JettonMaster != nil {
				out.JettonMaster = st.JettonMaster.String()
			}
			if st.JettonWallet != nil {
				out.JettonWallet = st.JettonWallet.String()
			}
			for _, r := range st.Swaps {
				s := swapOutput{
					QueryID:      r.QueryID,
					SwapID:       r.SwapID.Hex(),
					Counterparty: r.Counterparty.Hex(),
					CreatedAt:    r.CreatedAt,
					Status:       r.Status.String(),
				}
				if r.Owner != nil {
					s.Owner = r.Owner.String()
				}
				if r.Amount != nil {
					s.Amount = r.Amount.String()
				}
				out.Swaps = append(out.Swaps, s)
			}
			sort.Slice(out.Swaps, func(i, j int) bool { return out.Swaps[i].QueryID < out.Swaps[j].QueryID })

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
