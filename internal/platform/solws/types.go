package solws

import "encoding/json"

// subscribeFilter narrows the transaction stream to transactions touching
// the given accounts. Failed transactions are excluded at the source.
type subscribeFilter struct {
	Failed         bool     `json:"failed"`
	AccountInclude []string `json:"accountInclude"`
}

// subscribeOptions asks for full transaction detail so notifications carry
// log messages and token balances.
type subscribeOptions struct {
	Commitment                     string `json:"commitment"`
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	ShowRewards                    bool   `json:"showRewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// wsEnvelope is the outer shape of every server message: either a request
// acknowledgement (ID set) or a subscription notification (Method set).
type wsEnvelope struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Error  *wsError        `json:"error"`
	Params json.RawMessage `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type txNotificationParams struct {
	Result struct {
		Signature   string `json:"signature"`
		Slot        uint64 `json:"slot"`
		Transaction struct {
			Meta struct {
				Err               any      `json:"err"`
				LogMessages       []string `json:"logMessages"`
				PostTokenBalances []struct {
					Mint string `json:"mint"`
				} `json:"postTokenBalances"`
			} `json:"meta"`
		} `json:"transaction"`
	} `json:"result"`
}

// TxNotification is one observed transaction, reduced to the fields the
// decoding pipeline consumes.
type TxNotification struct {
	Signature             string
	Slot                  uint64
	Logs                  []string
	PostTokenBalanceMints []string
	Failed                bool
}
