package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/network"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ardanlabs/edublock/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	url    string
	to     string
	amount int64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a signed transaction to a node",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Name or public key of the receiving account.")
	sendCmd.Flags().Int64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	toKey := to
	if key, exists := ns.PublicKey(to); exists {
		toKey = key
	}

	tx, err := database.NewTx(signature.PublicKeyHex(privateKey.PublicKey), toKey, amount)
	if err != nil {
		return err
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var resp struct {
		Status string `json:"status"`
	}
	client := http.Client{Timeout: 10 * time.Second}
	if err := network.Send(ctx, &client, http.MethodPost, fmt.Sprintf("%s/v1/tx/submit", url), signedTx, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Status)

	return nil
}
