package core

import "testing"

func rawStacksBlockFixture() RawStacksBlock {
	return RawStacksBlock{
		BlockHeight:          10,
		IndexBlockHash:       "0xverbatim",
		ParentIndexBlockHash: "0x" + repeatHex("aa", 32),
		ParentBlockHeight:    9,
		Timestamp:            1700000000,

		Version:            1,
		ChainLength:        10,
		BurnSpent:          100,
		ConsensusHash:      "0x" + repeatHex("bb", 20),
		TxMerkleRoot:       "0x" + repeatHex("cc", 32),
		StateIndexRoot:     "0x" + repeatHex("dd", 32),
		MinerSignature:     "0x" + repeatHex("ee", 65),
		PoxTreatmentBitvec: "0x" + repeatHex("ff", 2),
	}
}

func repeatHex(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}

func TestStandardizeStacksBlockKeepsVerbatimHashWhenNakamotoDisabled(t *testing.T) {
	raw := rawStacksBlockFixture()
	block, err := StandardizeStacksBlock(raw, StandardizeConfig{NakamotoEnabled: false, Log: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.BlockIdentifier.Hash != raw.IndexBlockHash {
		t.Fatalf("expected the verbatim index_block_hash %s, got %s", raw.IndexBlockHash, block.BlockIdentifier.Hash)
	}
}

func TestStandardizeStacksBlockDerivesIndexHashWhenNakamotoEnabled(t *testing.T) {
	raw := rawStacksBlockFixture()
	block, err := StandardizeStacksBlock(raw, StandardizeConfig{NakamotoEnabled: true, Log: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.BlockIdentifier.Hash == raw.IndexBlockHash {
		t.Fatal("expected the Nakamoto-derived index_block_hash to replace the verbatim field")
	}
	if len(block.BlockIdentifier.Hash) != 2+64 { // "0x" + 32 bytes hex
		t.Fatalf("expected a 32-byte SHA512/256 digest, got %s", block.BlockIdentifier.Hash)
	}

	again, err := StandardizeStacksBlock(raw, StandardizeConfig{NakamotoEnabled: true, Log: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if again.BlockIdentifier.Hash != block.BlockIdentifier.Hash {
		t.Fatal("expected the derivation to be deterministic across calls with identical input")
	}

	raw.ChainLength++
	changed, err := StandardizeStacksBlock(raw, StandardizeConfig{NakamotoEnabled: true, Log: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error on mutated input: %v", err)
	}
	if changed.BlockIdentifier.Hash == block.BlockIdentifier.Hash {
		t.Fatal("expected changing chain_length to change the derived hash")
	}
}

func TestStandardizeStacksBlockNakamotoRejectsMalformedHexField(t *testing.T) {
	raw := rawStacksBlockFixture()
	raw.ConsensusHash = "not-hex"
	if _, err := StandardizeStacksBlock(raw, StandardizeConfig{NakamotoEnabled: true, Log: testLogger()}); err == nil {
		t.Fatal("expected an error for a malformed consensus_hash")
	}
}
