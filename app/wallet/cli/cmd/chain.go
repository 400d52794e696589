package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/network"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the blocks held by a node",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func chainRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var blocks []struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
		Trans  []struct {
			FromName string `json:"from_name"`
			ToName   string `json:"to_name"`
			Amount   int64  `json:"amount"`
		} `json:"trans"`
	}

	client := http.Client{Timeout: 10 * time.Second}
	if err := network.Send(ctx, &client, http.MethodGet, fmt.Sprintf("%s/v1/chain", url), nil, &blocks); err != nil {
		return err
	}

	for _, blk := range blocks {
		fmt.Printf("%d %s\n", blk.Number, blk.Hash)
		for _, tx := range blk.Trans {
			fmt.Printf("    %s -> %s: %d\n", tx.FromName, tx.ToName, tx.Amount)
		}
	}

	return nil
}
