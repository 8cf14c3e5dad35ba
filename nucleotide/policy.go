// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package nucleotide

import (
	"math/rand"
	"sync"
)

// PolicySeed is the fixed PRNG seed used by the RandomDraw policy. It is a
// compile-time constant so that replacement draws are reproducible across
// threads and runs, per the writer's determinism contract.
const PolicySeed = 0x5EED5EED

// Policy describes how a writer handles a sequence containing one or more
// non-ACGT bytes. Policies are applied to a caller-owned scratch buffer
// before the result is passed to Encode, so that well-formed sequences never
// allocate on the hot path.
type Policy interface {
	// Sanitize inspects seq in place. If seq is already valid, it returns
	// (true, nil) without modification. Otherwise it applies the policy:
	// replacement policies rewrite seq in place and return (true, nil);
	// BreakOnInvalid returns (false, err); IgnoreSequence returns (false, nil)
	// to signal "not written".
	Sanitize(seq []byte) (ok bool, err error)
}

type ignoreSequencePolicy struct{}

// IgnoreSequence is the default policy: records containing any non-ACGT byte
// are dropped silently (the writer reports "not written").
func IgnoreSequence() Policy { return ignoreSequencePolicy{} }

func (ignoreSequencePolicy) Sanitize(seq []byte) (bool, error) {
	if firstInvalid(seq) == nil {
		return true, nil
	}
	return false, nil
}

type breakOnInvalidPolicy struct{}

// BreakOnInvalid fails encoding of any sequence containing a non-ACGT byte,
// returning an error that carries the offending bytes as a diagnostic.
func BreakOnInvalid() Policy { return breakOnInvalidPolicy{} }

func (breakOnInvalidPolicy) Sanitize(seq []byte) (bool, error) {
	offs := firstInvalid(seq)
	if offs == nil {
		return true, nil
	}
	return false, invalidSymbolKind(&InvalidSymbolError{Bytes: append([]byte(nil), seq...), Offsets: offs})
}

// randomDrawPolicy replaces each invalid byte with a uniform draw from
// {A,C,G,T}. It owns a private PRNG, seeded deterministically, and is safe
// for concurrent use (draws from concurrent callers are merely serialized,
// not reordered in any meaningful way since each call only touches its own
// seq).
type randomDrawPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// RandomDraw replaces invalid bytes with a uniform random base, drawn from a
// PRNG seeded with PolicySeed. Construct one instance per writer (or per
// writer thread, in the ingest/merge model) to get deterministic, replayable
// output.
func RandomDraw() Policy {
	return &randomDrawPolicy{rng: rand.New(rand.NewSource(PolicySeed))}
}

func (p *randomDrawPolicy) Sanitize(seq []byte) (bool, error) {
	offs := firstInvalid(seq)
	if offs == nil {
		return true, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	replace(seq, offs, func() byte { return bits2base[p.rng.Intn(4)] })
	return true, nil
}

// replace overwrites seq at each offset in offs with the byte produced by
// next, the one code path shared by every replacement policy (RandomDraw's
// per-byte draw, SetTo*'s constant).
func replace(seq []byte, offs []int, next func() byte) {
	for _, i := range offs {
		seq[i] = next()
	}
}

type setToPolicy struct {
	replacement byte
}

// SetTo replaces every invalid byte with the fixed replacement base, which
// must be one of A, C, G, T.
func SetTo(replacement byte) Policy {
	if !IsValid(replacement) {
		panic("nucleotide: SetTo replacement must be A, C, G, or T")
	}
	return setToPolicy{replacement}
}

// SetToA, SetToC, SetToG, and SetToT are convenience constructors for the
// four fixed-replacement policies named in the format's invalid-symbol
// policy table.
func SetToA() Policy { return SetTo(A) }
func SetToC() Policy { return SetTo(C) }
func SetToG() Policy { return SetTo(G) }
func SetToT() Policy { return SetTo(T) }

func (p setToPolicy) Sanitize(seq []byte) (bool, error) {
	offs := firstInvalid(seq)
	if offs == nil {
		return true, nil
	}
	replace(seq, offs, func() byte { return p.replacement })
	return true, nil
}
