package arweave

// Tag is a name/value metadata pair attached to a transaction.
// Both fields hold base64url text exactly as served by the gateway.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Transaction is the subset of a gateway transaction document we use.
type Transaction struct {
	ID   string `json:"id"`
	Tags []Tag  `json:"tags"`
}

// Confirmation is the body of a 200 response from /tx/{id}/status.
type Confirmation struct {
	BlockHeight           int64  `json:"block_height"`
	BlockIndepHash        string `json:"block_indep_hash"`
	NumberOfConfirmations int64  `json:"number_of_confirmations"`
}

// TransactionStatus is the outcome of a status request.
// Code is the gateway's HTTP status; Confirmed is only set when Code is 200.
type TransactionStatus struct {
	Code      int
	Confirmed *Confirmation
}

// Block is the subset of a gateway block document we use.
type Block struct {
	IndepHash string `json:"indep_hash"`
	Height    int64  `json:"height"`
	Timestamp int64  `json:"timestamp"`
}
