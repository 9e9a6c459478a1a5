package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

func init() {
	//nolint:errcheck
	godotenv.Load()
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vaultctl",
		Usage: "operate a TON swap vault",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log lite client activity",
			},
		},
		Commands: []*cli.Command{
			commandSecret(),
			commandSwapID(),
			commandMsg(),
			commandState(),
			commandEVM(),
		},
	}
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// ==================== Flag helpers ====================

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Value: "base64",
		Usage: "BOC output encoding: base64 or hex",
	}
}

func queryIDFlag() cli.Flag {
	return &cli.Uint64Flag{
		Name:  "query-id",
		Usage: "message query id",
	}
}

func addrArg(c *cli.Context, name string) (*address.Address, error) {
	v := c.String(name)
	if v == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	addr, err := address.ParseAddr(v)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return addr, nil
}

func amountArg(c *cli.Context, name string) (*big.Int, error) {
	v := c.String(name)
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q", name, v)
	}
	return amount, nil
}

func printBOC(c *cli.Context, body *cell.Cell) error {
	boc := body.ToBOC()
	switch c.String("format") {
	case "hex":
		fmt.Fprintln(c.App.Writer, hex.EncodeToString(boc))
	case "base64", "":
		fmt.Fprintln(c.App.Writer, base64.StdEncoding.EncodeToString(boc))
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
	return nil
}
