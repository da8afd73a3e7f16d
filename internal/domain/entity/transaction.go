package entity

// Transaction is a normal or internal transfer as reported by the explorer API.
type Transaction struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasUsed     string `json:"gasUsed,omitempty"`
	IsError     string `json:"isError,omitempty"`
}

// TransactionHistory groups the two explorer transaction lists of an address.
type TransactionHistory struct {
	Normal   []Transaction `json:"normal"`
	Internal []Transaction `json:"internal"`
}
