package core

// EventKind is the closed set of transaction event payload kinds.
type EventKind string

const (
	EventSTXMint      EventKind = "stx_mint"
	EventSTXTransfer  EventKind = "stx_transfer"
	EventSTXBurn      EventKind = "stx_burn"
	EventSTXLock      EventKind = "stx_lock"
	EventNFTMint      EventKind = "nft_mint"
	EventNFTTransfer  EventKind = "nft_transfer"
	EventNFTBurn      EventKind = "nft_burn"
	EventFTMint       EventKind = "ft_mint"
	EventFTTransfer   EventKind = "ft_transfer"
	EventFTBurn       EventKind = "ft_burn"
	EventDataVarSet   EventKind = "data_var_set"
	EventDataMapInsert EventKind = "data_map_insert"
	EventDataMapUpdate EventKind = "data_map_update"
	EventDataMapDelete EventKind = "data_map_delete"
	EventSmartContract EventKind = "smart_contract_event"
)

// TransactionEvent is one ordered effect recorded against a transaction.
// Exactly one of the typed payload fields is populated, selected by Kind.
type TransactionEvent struct {
	Position int       `json:"position"`
	Kind     EventKind `json:"kind"`

	STX *STXEventData `json:"stx,omitempty"`
	NFT *NFTEventData `json:"nft,omitempty"`
	FT  *FTEventData  `json:"ft,omitempty"`

	DataVar *DataVarEventData `json:"data_var,omitempty"`
	DataMap *DataMapEventData `json:"data_map,omitempty"`

	SmartContractEvent *SmartContractEventData `json:"smart_contract_event,omitempty"`
}

// STXEventData covers stx_mint/transfer/burn/lock.
type STXEventData struct {
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"` // decimal string
}

// NFTEventData covers nft_mint/transfer/burn.
type NFTEventData struct {
	AssetClassIdentifier string `json:"asset_class_identifier"`
	AssetIdentifier      string `json:"asset_identifier"` // hex-encoded raw clarity value
	Sender               string `json:"sender,omitempty"`
	Recipient            string `json:"recipient,omitempty"`
}

// FTEventData covers ft_mint/transfer/burn.
type FTEventData struct {
	AssetClassIdentifier string `json:"asset_class_identifier"`
	Amount               string `json:"amount"` // decimal string
	Sender               string `json:"sender,omitempty"`
	Recipient            string `json:"recipient,omitempty"`
}

// DataVarEventData covers data_var_set.
type DataVarEventData struct {
	ContractIdentifier string `json:"contract_identifier"`
	Var                string `json:"var"`
	Value               string `json:"value"` // hex
}

// DataMapEventData covers data_map_insert/update/delete.
type DataMapEventData struct {
	ContractIdentifier string `json:"contract_identifier"`
	Map                string `json:"map"`
	Key                string `json:"key"`   // hex
	Value              string `json:"value"` // hex, empty for delete
}

// SmartContractEventData covers print and other contract-emitted events.
// Value is the raw hex-encoded clarity value; consumers decode it lazily
// via DecodeClarityValueHex (clarity_value.go), never eagerly on ingest.
type SmartContractEventData struct {
	ContractIdentifier string `json:"contract_identifier"`
	Topic              string `json:"topic"`
	Value              string `json:"value"`
}
