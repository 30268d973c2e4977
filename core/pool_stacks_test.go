package core

import "testing"

func stacksBlock(height uint64, hash, parentHash string) StacksBlock {
	return StacksBlock{
		BlockIdentifier:       BlockIdentifier{Index: height, Hash: hash},
		ParentBlockIdentifier: BlockIdentifier{Index: height - 1, Hash: parentHash},
		Timestamp:             int64(height),
	}
}

func stacksMicroblock(anchor BlockIdentifier, seq uint16, hash string, parent BlockIdentifier) StacksMicroblock {
	return StacksMicroblock{
		BlockIdentifier:            BlockIdentifier{Index: uint64(seq), Hash: hash},
		AnchorBlockIdentifier:      anchor,
		ParentMicroblockIdentifier: parent,
		Sequence:                   seq,
	}
}

func TestStacksPoolAnchorChainApplies(t *testing.T) {
	p := NewStacksPool(testLogger(), 7)

	genesis := stacksBlock(0, "0x00", "0x")
	events := p.AdmitBlock(genesis)
	if len(events) != 1 || events[0].Kind != EventApplyBlocks {
		t.Fatalf("expected genesis to apply, got %+v", events)
	}

	next := stacksBlock(1, "0x01", "0x00")
	events = p.AdmitBlock(next)
	if len(events) != 1 || events[0].Kind != EventApplyBlocks {
		t.Fatalf("expected block 1 to apply, got %+v", events)
	}

	tip, ok := p.CanonicalTip()
	if !ok || tip.Index != 1 {
		t.Fatalf("expected canonical tip at height 1, got %+v ok=%v", tip, ok)
	}
}

func TestStacksPoolMicroblockStreamAppliesThenReorgsOnTie(t *testing.T) {
	p := NewStacksPool(testLogger(), 7)
	anchor := BlockIdentifier{Index: 10, Hash: "0x0a"}

	mb0 := stacksMicroblock(anchor, 0, "0xm0", BlockIdentifier{})
	ev, changed := p.AdmitMicroblock(anchor, mb0)
	if !changed || ev.Kind != EventApplyMicroblocks {
		t.Fatalf("expected sequence-0 microblock to apply, got %+v changed=%v", ev, changed)
	}

	mb1 := stacksMicroblock(anchor, 1, "0xm1", mb0.BlockIdentifier)
	ev, changed = p.AdmitMicroblock(anchor, mb1)
	if !changed || ev.Kind != EventApplyMicroblocks {
		t.Fatalf("expected sequence-1 microblock to apply, got %+v changed=%v", ev, changed)
	}

	// A competing sequence-1 microblock off the same parent ties on height;
	// the newer arrival wins and forces a microblock reorg, mirroring the
	// base-chain pool's tie-break rule.
	competing := stacksMicroblock(anchor, 1, "0xm1b", mb0.BlockIdentifier)
	ev, changed = p.AdmitMicroblock(anchor, competing)
	if !changed || ev.Kind != EventReorgMicroblocks {
		t.Fatalf("expected the tied competing microblock to reorg the stream, got %+v changed=%v", ev, changed)
	}
	if len(ev.RollbackMicroblocks) == 0 || ev.RollbackMicroblocks[0].BlockIdentifier.Hash != "0xm1" {
		t.Fatalf("expected the stale sequence-1 microblock to roll back, got %+v", ev.RollbackMicroblocks)
	}
}

func TestStacksPoolAnchorConfirmsMicroblockStreamAndDiscardsIt(t *testing.T) {
	p := NewStacksPool(testLogger(), 7)

	parent := stacksBlock(10, "0x0a", "0x09")
	p.AdmitBlock(parent)

	mb0 := stacksMicroblock(parent.BlockIdentifier, 0, "0xm0", BlockIdentifier{})
	p.AdmitMicroblock(parent.BlockIdentifier, mb0)
	mb1 := stacksMicroblock(parent.BlockIdentifier, 1, "0xm1", mb0.BlockIdentifier)
	p.AdmitMicroblock(parent.BlockIdentifier, mb1)

	confirmed := mb1.BlockIdentifier
	next := stacksBlock(11, "0x0b", "0x0a")
	next.Metadata.ConfirmMicroblockIdentifier = &confirmed

	events := p.AdmitBlock(next)
	if len(events) == 0 {
		t.Fatal("expected at least the anchor-apply event")
	}
	if events[0].Kind != EventApplyBlocks {
		t.Fatalf("expected the first event to be the anchor apply, got %s", events[0].Kind)
	}

	// The stream extending 0x0a must be discarded once confirmed: a fresh
	// microblock re-admitted under the same anchor starts a brand new
	// stream rather than reusing stale state.
	fresh := stacksMicroblock(parent.BlockIdentifier, 0, "0xm0b", BlockIdentifier{})
	ev, changed := p.AdmitMicroblock(parent.BlockIdentifier, fresh)
	if !changed || ev.Kind != EventApplyMicroblocks {
		t.Fatalf("expected a fresh stream to start cleanly after confirmation, got %+v changed=%v", ev, changed)
	}
}
