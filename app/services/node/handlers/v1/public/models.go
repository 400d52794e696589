package public

import (
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/nameservice"
)

type submitTx struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Amount    int64  `json:"amount" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (st submitTx) toSignedTx() database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			From:   st.From,
			To:     st.To,
			Amount: st.Amount,
		},
		Signature: st.Signature,
	}
}

type tx struct {
	From      string `json:"from"`
	FromName  string `json:"from_name"`
	To        string `json:"to"`
	ToName    string `json:"to_name"`
	Amount    int64  `json:"amount"`
	Signature string `json:"signature"`
}

func toTx(ns *nameservice.NameService, signedTx database.SignedTx) tx {
	return tx{
		From:      signedTx.From,
		FromName:  ns.Lookup(signedTx.From),
		To:        signedTx.To,
		ToName:    ns.Lookup(signedTx.To),
		Amount:    signedTx.Amount,
		Signature: signedTx.Signature,
	}
}

type block struct {
	Number        uint64 `json:"number"`
	PrevBlockHash string `json:"prev_block_hash"`
	TimeStamp     uint64 `json:"timestamp"`
	Nonce         uint64 `json:"nonce"`
	Hash          string `json:"hash"`
	Stamp         string `json:"stamp,omitempty"`
	Trans         []tx   `json:"trans"`
}

func toBlock(ns *nameservice.NameService, blk database.Block) block {
	trans := make([]tx, len(blk.Trans))
	for i, signedTx := range blk.Trans {
		trans[i] = toTx(ns, signedTx)
	}

	return block{
		Number:        blk.Header.Number,
		PrevBlockHash: blk.Header.PrevBlockHash,
		TimeStamp:     blk.Header.TimeStamp,
		Nonce:         blk.Header.Nonce,
		Hash:          blk.Hash,
		Stamp:         blk.Stamp,
		Trans:         trans,
	}
}

func toBlocks(ns *nameservice.NameService, blks []database.Block) []block {
	out := make([]block, len(blks))
	for i, blk := range blks {
		out[i] = toBlock(ns, blk)
	}
	return out
}
