package flow

import "github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"

// Kind discriminates a Flow node's shape (§4.6).
type Kind int

const (
	KindSimple Kind = iota
	KindLoop
	KindIfElse
	KindSwitch
	KindEmpty
)

// BranchMode labels an outgoing edge a Simple block leaves structurally
// unresolved (a branch the surrounding WASM block/loop nesting must
// express as an explicit br/br_if rather than a plain fallthrough),
// mirroring the relooper vocabulary spec.md §4.6 names.
type BranchMode string

const (
	LoopBreak              BranchMode = "LoopBreak"
	LoopBreakIntoMulti     BranchMode = "LoopBreakIntoMulti"
	MergedBranchIntoMulti  BranchMode = "MergedBranchIntoMulti"
	SetLabelAndBreak       BranchMode = "SetLabelAndBreak"
	LoopContinue           BranchMode = "LoopContinue"
	LoopContinueIntoMulti  BranchMode = "LoopContinueIntoMulti"
)

// Flow is a node in the structured control-flow tree (§4.6). Only the
// fields meaningful for Kind are populated; the translator switches on
// Kind before reading them.
type Flow struct {
	Kind Kind

	// Simple
	Label        int
	Instructions []bytecode.Instruction
	Immediate    *Flow // a construct (IfElse/Switch/Loop) unconditionally entered right after Instructions
	Next         *Flow // the structured continuation once Immediate (if any) completes
	Branches     map[int]BranchMode

	// Loop
	LoopID int
	Inner  *Flow

	// IfElse
	Then *Flow
	Else *Flow

	// Switch
	Cases []*Flow
}

func empty() *Flow { return &Flow{Kind: KindEmpty} }

// virtualExit is a sentinel node id (no real block ever has a negative
// label) standing in for "falls off the end of the function": every
// Ret/Abort-terminated block's single reverse-graph edge targets it, so
// dominance over the reversed graph rooted here yields this function's
// post-dominator tree.
const virtualExit = -1

// DominatesReturn reports whether any path through f ends in Ret (§4.6):
// used downstream to decide whether a block's WASM result type matches
// the function's declared returns.
func DominatesReturn(f *Flow) bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case KindSimple:
		if n := len(f.Instructions); n > 0 && f.Instructions[n-1].Op == bytecode.OpRet {
			return true
		}
		return DominatesReturn(f.Immediate) || DominatesReturn(f.Next)
	case KindLoop:
		return DominatesReturn(f.Inner) || DominatesReturn(f.Next)
	case KindIfElse:
		return DominatesReturn(f.Then) || DominatesReturn(f.Else)
	case KindSwitch:
		for _, c := range f.Cases {
			if DominatesReturn(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

type builder struct {
	cfg          *CFG
	idom         map[int]int
	ipdom        map[int]int
	isLoopHeader map[int]bool
}

// Build reshapes fn's instruction sequence into a structured Flow tree
// (§4.6). Loop/if-else/switch regions are assumed to occupy a contiguous
// range of block labels, matching the output of a well-behaved
// structured-source compiler (the one this package's bytecode always
// comes from) — see DESIGN.md for the irreducible-CFG case this rules
// out.
func Build(fn *bytecode.FunctionDef) (*Flow, error) {
	cfg := BuildCFG(fn.Code)
	if len(cfg.Order) == 0 {
		return empty(), nil
	}

	succs := map[int][]int{}
	for label, b := range cfg.Blocks {
		succs[label] = b.Succs
	}

	b := &builder{cfg: cfg}
	entry := cfg.Order[0]
	b.idom = computeIdom(entry, succs)
	b.ipdom = computePostIdom(cfg)
	b.isLoopHeader = computeLoopHeaders(cfg, b.idom)

	limit := len(fn.Code) // one past every real instruction index: nothing is ever >= this
	return b.build(entry, limit), nil
}

func computePostIdom(cfg *CFG) map[int]int {
	reverseSuccs := map[int][]int{}
	for label, preds := range cfg.Preds {
		reverseSuccs[label] = preds
	}
	for _, label := range cfg.Order {
		if len(cfg.Blocks[label].Succs) == 0 {
			reverseSuccs[virtualExit] = append(reverseSuccs[virtualExit], label)
		}
	}
	return computeIdom(virtualExit, reverseSuccs)
}

func computeLoopHeaders(cfg *CFG, idom map[int]int) map[int]bool {
	headers := map[int]bool{}
	for _, label := range cfg.Order {
		for _, s := range cfg.Blocks[label].Succs {
			if dominates(s, label, idom) {
				headers[s] = true
			}
		}
	}
	return headers
}

func dominates(h, n int, idom map[int]int) bool {
	for {
		if n == h {
			return true
		}
		next, ok := idom[n]
		if !ok || next == n {
			return n == h
		}
		n = next
	}
}

// clampedPostIdom returns label's immediate post-dominator, bounded by
// limit: the merge point every path through a branch/switch/loop rooted
// at label eventually reaches, or limit itself if no such point exists
// inside the current region (the construct's paths never reconverge
// before the region's own end).
func (b *builder) clampedPostIdom(label, limit int) int {
	pd, ok := b.ipdom[label]
	if !ok || pd == virtualExit || pd > limit {
		return limit
	}
	return pd
}

func (b *builder) build(label, limit int) *Flow {
	if label < 0 || label >= limit {
		return empty()
	}
	if _, ok := b.cfg.Blocks[label]; !ok {
		return empty()
	}
	if b.isLoopHeader[label] {
		loopNext := b.clampedPostIdom(label, limit)
		inner := b.buildRegion(label, loopNext)
		next := b.build(loopNext, limit)
		return &Flow{Kind: KindLoop, LoopID: label, Inner: inner, Next: next}
	}
	return b.buildRegion(label, limit)
}

func (b *builder) buildRegion(label, limit int) *Flow {
	block := b.cfg.Blocks[label]
	switch len(block.Succs) {
	case 0:
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: empty(), Next: empty()}
	case 1:
		return b.buildSingleSuccessor(label, block, block.Succs[0], limit)
	case 2:
		thenLabel, elseLabel := thenElseTargets(block)
		merge := b.clampedPostIdom(label, limit)
		ifElse := &Flow{Kind: KindIfElse, Then: b.build(thenLabel, merge), Else: b.build(elseLabel, merge)}
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: ifElse, Next: b.build(merge, limit)}
	default:
		merge := b.clampedPostIdom(label, limit)
		cases := make([]*Flow, len(block.Succs))
		for i, s := range block.Succs {
			cases[i] = b.buildSwitchCase(s, merge)
		}
		switchFlow := &Flow{Kind: KindSwitch, Cases: cases}
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: switchFlow, Next: b.build(merge, limit)}
	}
}

func (b *builder) buildSingleSuccessor(label int, block *Block, s, limit int) *Flow {
	switch {
	case s == limit:
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: empty(), Next: empty()}
	case s > limit:
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: empty(), Next: empty(),
			Branches: map[int]BranchMode{s: LoopBreak}}
	case s <= label:
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: empty(), Next: empty(),
			Branches: map[int]BranchMode{s: LoopContinue}}
	default:
		return &Flow{Kind: KindSimple, Label: label, Instructions: block.Instructions, Immediate: empty(), Next: b.build(s, limit)}
	}
}

// buildSwitchCase builds the Flow for one VariantSwitch arm, guaranteed
// Kind == KindSimple at the top per §4.6 ("each case is required to be
// Simple"): a nested loop or further branching within the arm is carried
// in the wrapper's Immediate field rather than changing its own Kind.
func (b *builder) buildSwitchCase(s, merge int) *Flow {
	inner := b.build(s, merge)
	if inner.Kind == KindSimple && inner.Label == s {
		return inner
	}
	if inner.Kind == KindEmpty {
		return &Flow{Kind: KindSimple, Label: s, Immediate: empty(), Next: empty()}
	}
	return &Flow{Kind: KindSimple, Label: s, Immediate: inner, Next: empty()}
}

// thenElseTargets resolves a two-way conditional block's true/false
// targets: BuildCFG always orders a conditional's Succs as
// {fallthrough, jump-target}; BrTrue takes the jump target when true (the
// "then" arm), BrFalse takes it when false (the "else" arm).
func thenElseTargets(block *Block) (thenLabel, elseLabel int) {
	last := block.Instructions[len(block.Instructions)-1]
	fallthroughLabel, jumpTarget := block.Succs[0], block.Succs[1]
	if last.Op == bytecode.OpBrFalse {
		return fallthroughLabel, jumpTarget
	}
	return jumpTarget, fallthroughLabel
}
