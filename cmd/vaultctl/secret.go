package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"tonvault/internal/hashlock"
)

func commandSecret() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "hashlock secrets",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "generate a secret and print every swap id derived from it",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "bytes",
						Value: 32,
					},
				},
				Action: func(c *cli.Context) error {
					secret, err := hashlock.NewSecret(c.Int("bytes"))
					if err != nil {
						return err
					}
					commitment, err := hashlock.Commit(secret)
					if err != nil {
						return err
					}
					fmt.Printf("secret:    %s\n", secret.Hex())
					fmt.Printf("sha256:    %s\n", commitment.SHA256.Hex())
					fmt.Printf("cell:      %s\n", commitment.CellHash.Hex())
					fmt.Printf("keccak256: %s\n", commitment.Keccak256.Hex())
					return nil
				},
			},
		},
	}
}

func commandSwapID() *cli.Command {
	return &cli.Command{
		Name:  "swapid",
		Usage: "derive a swap id from a secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "hex encoded secret",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "variant",
				Value: string(hashlock.VariantSHA256),
				Usage: "sha256, cell or keccak256",
			},
			&cli.StringFlag{
				Name:  "verify",
				Usage: "expected swap id; fails when it does not match",
			},
		},
		Action: func(c *cli.Context) error {
			variant, err := hashlock.ParseVariant(c.String("variant"))
			if err != nil {
				return err
			}
			secret, err := hashlock.ParseSecretHex(c.String("secret"))
			if err != nil {
				return err
			}

			if want := c.String("verify"); want != "" {
				id, err := parseSwapID(want)
				if err != nil {
					return err
				}
				if err := hashlock.Verify(variant, secret, id); err != nil {
					return err
				}
			}

			id, err := hashlock.Derive(variant, secret)
			if err != nil {
				return err
			}
			fmt.Println(id.Hex())
			return nil
		},
	}
}
