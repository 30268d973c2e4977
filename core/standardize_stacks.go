package core

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// --- Wire payloads (raw, as reported by the node over HTTP) ---------------

// RawStacksEvent is one flat event record as attached to a /new_block or
// /new_microblocks payload, keyed back to its transaction by TxID.
type RawStacksEvent struct {
	TxID  string            `json:"txid"`
	Index int               `json:"index"`
	Type  string            `json:"type"` // mirrors EventKind string values
	Data  map[string]string `json:"data"`
}

// RawStacksTransaction is one transaction record inside a raw block/
// microblock payload.
type RawStacksTransaction struct {
	TxID    string `json:"txid"`
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	RawTx   string `json:"raw_tx"` // hex, the consensus-serialized transaction
	Result  string `json:"result"` // hex clarity value
	VMError string `json:"vm_error,omitempty"`
}

// RawStacksBlock is the flattened /new_block wire shape.
type RawStacksBlock struct {
	BlockHeight          uint64 `json:"block_height"`
	BlockHash            string `json:"block_hash"`
	IndexBlockHash       string `json:"index_block_hash"`
	ParentIndexBlockHash string `json:"parent_index_block_hash"`
	ParentBlockHeight    uint64 `json:"parent_block_height"`
	BurnBlockHeight      uint64 `json:"burn_block_height"`
	BurnBlockHash        string `json:"burn_block_hash"`
	Timestamp            int64  `json:"burn_block_time"`

	GenesisBurnHeight  uint64 `json:"genesis_burn_block_height,omitempty"`
	PoxPreparePhaseLen uint64 `json:"pox_prepare_phase_len,omitempty"`
	PoxRewardPhaseLen  uint64 `json:"pox_reward_phase_len,omitempty"`

	ConfirmMicroblockIdentifier *BlockIdentifier `json:"confirm_microblock_identifier,omitempty"`
	SignerBitvec                string           `json:"signer_bitvec,omitempty"`
	SignerSignatureHash         string           `json:"signer_signature_hash,omitempty"`
	SignerSignatures            []string         `json:"signer_signatures,omitempty"` // each a 65-byte recoverable signature, hex
	RewardSet                   *RewardSet       `json:"reward_set,omitempty"`

	// Nakamoto extensions (spec.md §4.2), only read when
	// StandardizeConfig.NakamotoEnabled is set.
	Version            uint8  `json:"version,omitempty"`
	ChainLength        uint64 `json:"chain_length,omitempty"`
	BurnSpent          uint64 `json:"burn_spent,omitempty"`
	ConsensusHash      string `json:"consensus_hash,omitempty"`
	TxMerkleRoot       string `json:"tx_merkle_root,omitempty"`
	StateIndexRoot     string `json:"state_index_root,omitempty"`
	MinerSignature     string `json:"miner_signature,omitempty"`
	PoxTreatmentBitvec string `json:"pox_treatment_bitvec,omitempty"`

	Transactions []RawStacksTransaction `json:"transactions"`
	Events       []RawStacksEvent       `json:"events"`
}

// RawStacksMicroblock is the flattened /new_microblocks wire shape for a
// single microblock inside the trail.
type RawStacksMicroblock struct {
	AnchorBlockIdentifier BlockIdentifier        `json:"anchor_block_identifier"`
	ParentMicroblockHash  string                 `json:"parent_microblock_hash,omitempty"` // empty for sequence 0, whose parent is the anchor
	Sequence              uint16                 `json:"sequence"`
	Hash                  string                 `json:"microblock_hash"`
	Timestamp             int64                  `json:"burn_block_time"`
	Transactions          []RawStacksTransaction `json:"transactions"`
	Events                []RawStacksEvent       `json:"events"`
}

// StandardizeConfig toggles feature-gated behavior of the pipeline.
type StandardizeConfig struct {
	NakamotoEnabled bool
	Log             *logrus.Logger
}

// StandardizeStacksBlock converts one raw node payload into the normalized
// StacksBlock, per spec.md §4.2.
func StandardizeStacksBlock(raw RawStacksBlock, cfg StandardizeConfig) (StacksBlock, error) {
	eventsByTx := groupEventsByTx(raw.Events)

	txs := make([]StacksTransaction, 0, len(raw.Transactions))
	for _, rtx := range raw.Transactions {
		evs := eventsByTx[rtx.TxID]
		stx, err := standardizeStacksTransaction(rtx, evs, intPtr(len(txs)))
		if err != nil {
			return StacksBlock{}, fmt.Errorf("tx %s: %w", rtx.TxID, err)
		}
		txs = append(txs, stx)
	}

	cycleIndex, cyclePos, cycleLen := rewardCycle(raw.BurnBlockHeight, raw.GenesisBurnHeight, raw.PoxPreparePhaseLen, raw.PoxRewardPhaseLen)

	meta := StacksBlockMetadata{
		BitcoinAnchorBlockIdentifier: BlockIdentifier{Index: raw.BurnBlockHeight, Hash: raw.BurnBlockHash},
		PoxCycleIndex:                cycleIndex,
		PoxCyclePosition:             cyclePos,
		PoxCycleLength:               cycleLen,
		ConfirmMicroblockIdentifier:  raw.ConfirmMicroblockIdentifier,
		SignerBitvec:                 raw.SignerBitvec,
		RewardSet:                    raw.RewardSet,
	}

	if len(raw.SignerSignatures) > 0 {
		digest, err := decodeHexPrefixed(raw.SignerSignatureHash)
		if err != nil {
			return StacksBlock{}, fmt.Errorf("%w: signer signature hash: %v", ErrMalformedPayload, err)
		}
		pubkeys := make([]string, 0, len(raw.SignerSignatures))
		for _, sigHex := range raw.SignerSignatures {
			sig, err := decodeHexPrefixed(sigHex)
			if err != nil {
				return StacksBlock{}, fmt.Errorf("%w: signer signature: %v", ErrMalformedPayload, err)
			}
			pub, err := RecoverSignerPubkeyRecoverable(sig, digest)
			if err != nil {
				// Fatal for the surrounding block, per spec.md §4.2/§7.
				return StacksBlock{}, err
			}
			pubkeys = append(pubkeys, hex.EncodeToString(pub))
		}
		meta.SignerSignatures = raw.SignerSignatures
		meta.SignerPublicKeys = pubkeys
	}

	indexBlockHash := raw.IndexBlockHash
	if cfg.NakamotoEnabled {
		derived, err := nakamotoIndexBlockHash(raw)
		if err != nil {
			return StacksBlock{}, err
		}
		indexBlockHash = hexPrefixed(derived)
	}

	return StacksBlock{
		BlockIdentifier:       BlockIdentifier{Index: raw.BlockHeight, Hash: indexBlockHash},
		ParentBlockIdentifier: BlockIdentifier{Index: raw.ParentBlockHeight, Hash: raw.ParentIndexBlockHash},
		Timestamp:             raw.Timestamp,
		Transactions:          txs,
		Metadata:              meta,
	}, nil
}

// nakamotoIndexBlockHash computes spec.md §4.2's Nakamoto extensions:
// block_hash = SHA512/256(version || be8(chain_length) || be8(burn_spent) ||
// consensus_hash || parent_block_id || tx_merkle_root || state_index_root ||
// be8(timestamp) || miner_signature || pox_treatment_bitvec), and
// index_block_hash = SHA512/256(block_hash || consensus_hash).
func nakamotoIndexBlockHash(raw RawStacksBlock) ([]byte, error) {
	consensusHash, err := decodeHexPrefixed(raw.ConsensusHash)
	if err != nil {
		return nil, fmt.Errorf("%w: consensus_hash: %v", ErrMalformedPayload, err)
	}
	parentBlockID, err := decodeHexPrefixed(raw.ParentIndexBlockHash)
	if err != nil {
		return nil, fmt.Errorf("%w: parent_index_block_hash: %v", ErrMalformedPayload, err)
	}
	txMerkleRoot, err := decodeHexPrefixed(raw.TxMerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: tx_merkle_root: %v", ErrMalformedPayload, err)
	}
	stateIndexRoot, err := decodeHexPrefixed(raw.StateIndexRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: state_index_root: %v", ErrMalformedPayload, err)
	}
	minerSignature, err := decodeHexPrefixed(raw.MinerSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: miner_signature: %v", ErrMalformedPayload, err)
	}
	poxBitvec, err := decodeHexPrefixed(raw.PoxTreatmentBitvec)
	if err != nil {
		return nil, fmt.Errorf("%w: pox_treatment_bitvec: %v", ErrMalformedPayload, err)
	}

	var buf bytes.Buffer
	buf.WriteByte(raw.Version)
	var be8 [8]byte
	binary.BigEndian.PutUint64(be8[:], raw.ChainLength)
	buf.Write(be8[:])
	binary.BigEndian.PutUint64(be8[:], raw.BurnSpent)
	buf.Write(be8[:])
	buf.Write(consensusHash)
	buf.Write(parentBlockID)
	buf.Write(txMerkleRoot)
	buf.Write(stateIndexRoot)
	binary.BigEndian.PutUint64(be8[:], uint64(raw.Timestamp))
	buf.Write(be8[:])
	buf.Write(minerSignature)
	buf.Write(poxBitvec)

	blockHash := sha512.Sum512_256(buf.Bytes())
	indexInput := append(append([]byte{}, blockHash[:]...), consensusHash...)
	indexBlockHash := sha512.Sum512_256(indexInput)
	return indexBlockHash[:], nil
}

// StandardizeStacksMicroblock converts one microblock trail entry.
func StandardizeStacksMicroblock(raw RawStacksMicroblock) (StacksMicroblock, error) {
	eventsByTx := groupEventsByTx(raw.Events)
	txs := make([]StacksTransaction, 0, len(raw.Transactions))
	for _, rtx := range raw.Transactions {
		seq := int(raw.Sequence)
		idx := intPtr(len(txs))
		stx, err := standardizeStacksTransaction(rtx, eventsByTx[rtx.TxID], nil)
		if err != nil {
			return StacksMicroblock{}, fmt.Errorf("tx %s: %w", rtx.TxID, err)
		}
		stx.Metadata.Position = TransactionPosition{MicroblockSequence: &seq, MicroblockOrdinal: idx}
		txs = append(txs, stx)
	}
	var parent BlockIdentifier
	if raw.Sequence > 0 {
		parent = BlockIdentifier{Index: uint64(raw.Sequence) - 1, Hash: raw.ParentMicroblockHash}
	}

	return StacksMicroblock{
		BlockIdentifier:            BlockIdentifier{Index: uint64(raw.Sequence), Hash: raw.Hash},
		AnchorBlockIdentifier:      raw.AnchorBlockIdentifier,
		ParentMicroblockIdentifier: parent,
		Sequence:                   raw.Sequence,
		Timestamp:                  raw.Timestamp,
		Transactions:               txs,
	}, nil
}

func groupEventsByTx(events []RawStacksEvent) map[string][]RawStacksEvent {
	out := make(map[string][]RawStacksEvent)
	for _, e := range events {
		out[e.TxID] = append(out[e.TxID], e)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	}
	return out
}

func intPtr(v int) *int { return &v }

func standardizeStacksTransaction(raw RawStacksTransaction, evs []RawStacksEvent, anchorOrdinal *int) (StacksTransaction, error) {
	events, mutatedContracts, mutatedAssets, err := standardizeEvents(evs)
	if err != nil {
		return StacksTransaction{}, err
	}

	rawTxBytes, err := decodeHexPrefixed(raw.RawTx)
	if err != nil {
		return StacksTransaction{}, fmt.Errorf("%w: raw_tx: %v", ErrConsensusDeserialize, err)
	}

	// A single zero byte marks a base-chain-initiated transition
	// (spec.md §4.2 "Base-chain transitions inside smart-chain transactions").
	if len(rawTxBytes) == 1 && rawTxBytes[0] == 0x00 {
		return standardizeBaseChainOpTransaction(raw, events, mutatedContracts, mutatedAssets, anchorOrdinal)
	}

	decoded, err := DecodeStacksTransaction(rawTxBytes)
	if err != nil {
		return StacksTransaction{}, err
	}

	sender := principalString(decoded.Auth.Sender)
	var sponsor *string
	if decoded.Auth.Sponsored {
		s := principalString(decoded.Auth.Sponsor)
		sponsor = &s
	}

	ops := operationsFromEvents(events, sender)

	var contractABI *string
	var vmErr *string
	if raw.VMError != "" {
		vmErr = &raw.VMError
	}

	pos := TransactionPosition{}
	if anchorOrdinal != nil {
		pos.AnchorBlockOrdinal = anchorOrdinal
	}

	var contractCall *ContractCallInfo
	var contractDeployment *ContractDeploymentInfo
	switch decoded.Payload.Kind {
	case KindContractCall:
		contractCall = &ContractCallInfo{
			ContractID: decoded.Payload.ContractAddress + "." + decoded.Payload.ContractName,
			Method:     decoded.Payload.FunctionName,
		}
	case KindContractDeployment:
		contractDeployment = &ContractDeploymentInfo{Deployer: sender, ContractName: decoded.Payload.ContractName}
	}

	return StacksTransaction{
		TransactionIdentifier: TransactionIdentifier{Hash: raw.TxID},
		Operations:            ops,
		Metadata: StacksTransactionMeta{
			Success:       raw.Success,
			RawTx:         raw.RawTx,
			Result:        raw.Result,
			Sender:        sender,
			Nonce:         decoded.Auth.Sender.Nonce,
			Fee:           decoded.Auth.Sender.Fee,
			Sponsor:       sponsor,
			Kind:          decoded.Payload.Kind,
			Description:   describePayload(decoded, sender),
			ExecutionCost: ExecutionCost{},
			Receipt: Receipt{
				MutatedContracts:   mutatedContracts,
				MutatedAssets:      mutatedAssets,
				ContractCallsStack: decoded.Payload.ContractCallsStack,
				Events:             events,
			},
			Position:           pos,
			ContractABI:        contractABI,
			VMError:            vmErr,
			ContractCall:       contractCall,
			ContractDeployment: contractDeployment,
		},
	}, nil
}

// standardizeBaseChainOpTransaction reconstructs a native-transfer or
// stack/delegate-stack operation from the event stream by decoding a
// Response<Tuple{stacker, data: Tuple{amount-ustx, delegate-to, pox-addr,
// unlock-burn-height}}> smart-contract-event value, per spec.md §4.2.
func standardizeBaseChainOpTransaction(raw RawStacksTransaction, events []TransactionEvent, mutContracts, mutAssets map[string]struct{}, anchorOrdinal *int) (StacksTransaction, error) {
	kind := KindNativeTransfer
	var stacker, delegateTo, poxAddr string
	var amountUstx, unlockBurnHeight uint64

	for _, ev := range events {
		if ev.SmartContractEvent == nil {
			continue
		}
		cv, err := DecodeClarityValueHex(ev.SmartContractEvent.Value)
		if err != nil {
			continue
		}
		if cv.TypeID != ClarityResponseOk || cv.Response == nil || cv.Response.TypeID != ClarityTuple {
			continue
		}
		tuple := cv.Response
		if v, ok := tuple.TupleValues["stacker"]; ok {
			stacker = v.Display()
		}
		if data, ok := tuple.TupleValues["data"]; ok && data.TypeID == ClarityTuple {
			kind = KindBaseChainOpStack
			if v, ok := data.TupleValues["amount-ustx"]; ok && v.Int != nil {
				amountUstx = v.Int.Uint64()
			}
			if v, ok := data.TupleValues["delegate-to"]; ok {
				delegateTo = v.Display()
				if delegateTo != "none" {
					kind = KindBaseChainOpDelegate
				}
			}
			if v, ok := data.TupleValues["pox-addr"]; ok {
				poxAddr = v.Display()
			}
			if v, ok := data.TupleValues["unlock-burn-height"]; ok && v.Int != nil {
				unlockBurnHeight = v.Int.Uint64()
			}
		}
		break
	}

	desc := fmt.Sprintf("burnchain-op: stack %d ustx for %s (unlock %d)", amountUstx, stacker, unlockBurnHeight)
	if kind == KindBaseChainOpDelegate {
		desc = fmt.Sprintf("burnchain-op: delegate-stack %d ustx from %s to %s", amountUstx, stacker, delegateTo)
	} else if kind == KindNativeTransfer {
		desc = fmt.Sprintf("burnchain-op: native-transfer to %s", stacker)
	}
	_ = poxAddr

	pos := TransactionPosition{}
	if anchorOrdinal != nil {
		pos.AnchorBlockOrdinal = anchorOrdinal
	}

	return StacksTransaction{
		TransactionIdentifier: TransactionIdentifier{Hash: raw.TxID},
		Metadata: StacksTransactionMeta{
			Success:     raw.Success,
			RawTx:       raw.RawTx,
			Result:      raw.Result,
			Sender:      stacker,
			Kind:        kind,
			Description: desc,
			Receipt: Receipt{
				MutatedContracts: mutContracts,
				MutatedAssets:    mutAssets,
				Events:           events,
			},
			Position: pos,
		},
	}, nil
}

func standardizeEvents(raw []RawStacksEvent) ([]TransactionEvent, map[string]struct{}, map[string]struct{}, error) {
	out := make([]TransactionEvent, 0, len(raw))
	mutContracts := make(map[string]struct{})
	mutAssets := make(map[string]struct{})

	for _, e := range raw {
		ev := TransactionEvent{Position: e.Index, Kind: EventKind(e.Type)}
		switch ev.Kind {
		case EventSTXMint, EventSTXTransfer, EventSTXBurn, EventSTXLock:
			ev.STX = &STXEventData{Sender: e.Data["sender"], Recipient: e.Data["recipient"], Amount: e.Data["amount"]}
		case EventNFTMint, EventNFTTransfer, EventNFTBurn:
			ev.NFT = &NFTEventData{
				AssetClassIdentifier: e.Data["asset_class_identifier"],
				AssetIdentifier:      e.Data["asset_identifier"],
				Sender:               e.Data["sender"],
				Recipient:            e.Data["recipient"],
			}
			mutAssets[ev.NFT.AssetClassIdentifier] = struct{}{}
		case EventFTMint, EventFTTransfer, EventFTBurn:
			ev.FT = &FTEventData{
				AssetClassIdentifier: e.Data["asset_class_identifier"],
				Amount:               e.Data["amount"],
				Sender:               e.Data["sender"],
				Recipient:            e.Data["recipient"],
			}
			mutAssets[ev.FT.AssetClassIdentifier] = struct{}{}
		case EventDataVarSet:
			ev.DataVar = &DataVarEventData{ContractIdentifier: e.Data["contract_identifier"], Var: e.Data["var"], Value: e.Data["value"]}
			mutContracts[ev.DataVar.ContractIdentifier] = struct{}{}
		case EventDataMapInsert, EventDataMapUpdate, EventDataMapDelete:
			ev.DataMap = &DataMapEventData{ContractIdentifier: e.Data["contract_identifier"], Map: e.Data["map"], Key: e.Data["key"], Value: e.Data["value"]}
			mutContracts[ev.DataMap.ContractIdentifier] = struct{}{}
		case EventSmartContract:
			ev.SmartContractEvent = &SmartContractEventData{ContractIdentifier: e.Data["contract_identifier"], Topic: e.Data["topic"], Value: e.Data["value"]}
			mutContracts[ev.SmartContractEvent.ContractIdentifier] = struct{}{}
		default:
			return nil, nil, nil, fmt.Errorf("%w: unknown event kind %q", ErrMalformedPayload, e.Type)
		}
		out = append(out, ev)
	}
	return out, mutContracts, mutAssets, nil
}

// operationsFromEvents synthesizes the debit/credit operations list from
// STX transfer events, linking the paired debit/credit via Related.
func operationsFromEvents(events []TransactionEvent, sender string) []Operation {
	var ops []Operation
	for _, e := range events {
		if e.STX == nil {
			continue
		}
		switch e.Kind {
		case EventSTXTransfer:
			debitIdx := len(ops)
			ops = append(ops, Operation{Type: OpDebit, Account: e.STX.Sender, Currency: "STX", Amount: e.STX.Amount})
			creditIdx := len(ops)
			related := debitIdx
			ops = append(ops, Operation{Type: OpCredit, Account: e.STX.Recipient, Currency: "STX", Amount: e.STX.Amount, Related: &related})
			ops[debitIdx].Related = &creditIdx
		case EventSTXMint:
			ops = append(ops, Operation{Type: OpCredit, Account: e.STX.Recipient, Currency: "STX", Amount: e.STX.Amount})
		case EventSTXBurn:
			ops = append(ops, Operation{Type: OpDebit, Account: e.STX.Sender, Currency: "STX", Amount: e.STX.Amount})
		case EventSTXLock:
			ops = append(ops, Operation{Type: OpLock, Account: e.STX.Sender, Currency: "STX", Amount: e.STX.Amount})
		}
	}
	return ops
}

// --- Consensus transaction decoding (auth + payload) -----------------------

// DecodedStacksAuth is the standard-or-sponsored authorization of a
// transaction, carrying just enough to derive addresses (spec.md §4.2 item 3).
type DecodedStacksAuth struct {
	Sponsored bool
	Sender    SpendingCondition
	Sponsor   SpendingCondition
}

// SpendingCondition names one principal's address-hash-mode derived address
// plus its nonce/fee.
type SpendingCondition struct {
	HashMode byte
	Hash160  [20]byte
	Nonce    uint64
	Fee      uint64
}

// DecodedStacksPayload is the typed payload of a transaction.
type DecodedStacksPayload struct {
	Kind               StacksTransactionKind
	Recipient          string
	Amount             *big.Int
	Memo                []byte
	ContractAddress    string
	ContractName       string
	FunctionName       string
	Args               []ClarityValue
	Code               []byte
	ContractCallsStack []string
}

// DecodedStacksTransaction is the full typed structure a raw transaction
// consensus-deserializes into.
type DecodedStacksTransaction struct {
	Auth    DecodedStacksAuth
	Payload DecodedStacksPayload
}

const (
	payloadKindTokenTransfer byte = 1
	payloadKindContractCall  byte = 2
	payloadKindDeployment    byte = 3
	payloadKindCoinbase      byte = 4
	payloadKindTenureChange  byte = 5
	payloadKindPoison        byte = 6
)

// DecodeStacksTransaction consensus-deserializes a transaction's raw bytes
// into its typed structure.
func DecodeStacksTransaction(b []byte) (DecodedStacksTransaction, error) {
	if len(b) < 1 {
		return DecodedStacksTransaction{}, fmt.Errorf("%w: empty transaction", ErrConsensusDeserialize)
	}
	sponsored := b[0] == 1
	b = b[1:]

	sender, rest, err := decodeSpendingCondition(b)
	if err != nil {
		return DecodedStacksTransaction{}, err
	}
	b = rest

	var sponsor SpendingCondition
	if sponsored {
		sponsor, b, err = decodeSpendingCondition(b)
		if err != nil {
			return DecodedStacksTransaction{}, err
		}
	}

	payload, _, err := decodeStacksPayload(b)
	if err != nil {
		return DecodedStacksTransaction{}, err
	}

	return DecodedStacksTransaction{
		Auth: DecodedStacksAuth{
			Sponsored: sponsored,
			Sender:    sender,
			Sponsor:   sponsor,
		},
		Payload: payload,
	}, nil
}

func decodeSpendingCondition(b []byte) (SpendingCondition, []byte, error) {
	if len(b) < 37 {
		return SpendingCondition{}, nil, fmt.Errorf("%w: short spending condition", ErrConsensusDeserialize)
	}
	var sc SpendingCondition
	sc.HashMode = b[0]
	copy(sc.Hash160[:], b[1:21])
	sc.Nonce = binary.BigEndian.Uint64(b[21:29])
	sc.Fee = binary.BigEndian.Uint64(b[29:37])
	return sc, b[37:], nil
}

func decodeStacksPayload(b []byte) (DecodedStacksPayload, []byte, error) {
	if len(b) < 1 {
		return DecodedStacksPayload{}, nil, fmt.Errorf("%w: missing payload kind", ErrConsensusDeserialize)
	}
	kind := b[0]
	b = b[1:]
	switch kind {
	case payloadKindTokenTransfer:
		if len(b) < 21+16+2 {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: short token-transfer payload", ErrConsensusDeserialize)
		}
		version := b[0]
		hash160 := b[1:21]
		recipient := fmt.Sprintf("v%d-%s", version, hex.EncodeToString(hash160))
		amount := new(big.Int).SetBytes(b[21:37])
		memoLen := binary.BigEndian.Uint16(b[37:39])
		b = b[39:]
		if int(memoLen) > len(b) {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: truncated memo", ErrConsensusDeserialize)
		}
		memo := b[:memoLen]
		return DecodedStacksPayload{Kind: KindNativeTransfer, Recipient: recipient, Amount: amount, Memo: memo}, b[memoLen:], nil

	case payloadKindContractCall:
		version := b[0]
		hash160 := b[1:21]
		b = b[21:]
		cname, b, err := readPString(b)
		if err != nil {
			return DecodedStacksPayload{}, nil, err
		}
		fname, b, err := readPString(b)
		if err != nil {
			return DecodedStacksPayload{}, nil, err
		}
		if len(b) < 2 {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: missing arg count", ErrConsensusDeserialize)
		}
		argc := binary.BigEndian.Uint16(b[:2])
		b = b[2:]
		args := make([]ClarityValue, 0, argc)
		for i := uint16(0); i < argc; i++ {
			v, rest, err := decodeClarityValue(b)
			if err != nil {
				return DecodedStacksPayload{}, nil, err
			}
			args = append(args, v)
			b = rest
		}
		contractAddr := fmt.Sprintf("v%d-%s", version, hex.EncodeToString(hash160))
		return DecodedStacksPayload{
			Kind:            KindContractCall,
			ContractAddress: contractAddr,
			ContractName:    cname,
			FunctionName:    fname,
			Args:            args,
			ContractCallsStack: []string{contractAddr + "." + cname},
		}, b, nil

	case payloadKindDeployment:
		cname, b, err := readPString(b)
		if err != nil {
			return DecodedStacksPayload{}, nil, err
		}
		if len(b) < 4 {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: missing code length", ErrConsensusDeserialize)
		}
		codeLen := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < codeLen {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: truncated contract code", ErrConsensusDeserialize)
		}
		return DecodedStacksPayload{Kind: KindContractDeployment, ContractName: cname, Code: b[:codeLen]}, b[codeLen:], nil

	case payloadKindCoinbase:
		if len(b) < 32 {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: short coinbase payload", ErrConsensusDeserialize)
		}
		return DecodedStacksPayload{Kind: KindCoinbase}, b[32:], nil

	case payloadKindTenureChange:
		if len(b) < 21 {
			return DecodedStacksPayload{}, nil, fmt.Errorf("%w: short tenure-change payload", ErrConsensusDeserialize)
		}
		return DecodedStacksPayload{Kind: KindTenureChange}, b[21:], nil

	case payloadKindPoison:
		return DecodedStacksPayload{Kind: KindUnsupported}, b, nil

	default:
		return DecodedStacksPayload{}, nil, fmt.Errorf("%w: unknown payload kind 0x%02x", ErrConsensusDeserialize, kind)
	}
}

func readPString(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, fmt.Errorf("%w: missing string length", ErrConsensusDeserialize)
	}
	n := int(b[0])
	b = b[1:]
	if len(b) < n {
		return "", nil, fmt.Errorf("%w: truncated string", ErrConsensusDeserialize)
	}
	return string(b[:n]), b[n:], nil
}

func principalString(sc SpendingCondition) string {
	return fmt.Sprintf("v%d-%s", sc.HashMode, hex.EncodeToString(sc.Hash160[:]))
}

// describePayload produces the human description string of spec.md §4.2
// item 4, reproducible bit-for-bit from the typed payload.
func describePayload(tx DecodedStacksTransaction, sender string) string {
	switch tx.Payload.Kind {
	case KindNativeTransfer:
		return fmt.Sprintf("transferred: %s microSTX from %s to %s", tx.Payload.Amount, sender, tx.Payload.Recipient)
	case KindContractCall:
		args := make([]string, 0, len(tx.Payload.Args))
		for _, a := range tx.Payload.Args {
			args = append(args, a.Display())
		}
		return fmt.Sprintf("invoked: %s.%s::%s(%s)", tx.Payload.ContractAddress, tx.Payload.ContractName, tx.Payload.FunctionName, strings.Join(args, ", "))
	case KindContractDeployment:
		return fmt.Sprintf("deployed: %s.%s", sender, tx.Payload.ContractName)
	case KindCoinbase:
		return "coinbase"
	case KindTenureChange:
		return "tenure-change"
	default:
		return "unsupported"
	}
}
