package qweave

import (
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qweave/linalg"
)

/*
txn captures everything a composite call can touch, so that a failed call
leaves the composites, spaces, containers and envelopes exactly as they were.
Representations are immutable once stored, which keeps the snapshot shallow.
Backends that expose their random source have it rewound as well.
*/
type txn struct {
	composites map[*CompositeEnvelope]CompositeEnvelope
	spaces     map[*ProductSpace]ProductSpace
	states     map[*State]State
	envelopes  map[*Envelope]Envelope
	samplers   map[linalg.SamplerState][]byte
}

func begin(composites []*CompositeEnvelope, states []*State) *txn {
	tx := &txn{
		composites: make(map[*CompositeEnvelope]CompositeEnvelope),
		spaces:     make(map[*ProductSpace]ProductSpace),
		states:     make(map[*State]State),
		envelopes:  make(map[*Envelope]Envelope),
		samplers:   make(map[linalg.SamplerState][]byte),
	}

	for _, ce := range composites {
		if ce != nil {
			tx.captureComposite(ce)
		}
	}
	for _, s := range states {
		tx.captureState(s)
	}
	return tx
}

func (tx *txn) captureComposite(ce *CompositeEnvelope) {
	if _, ok := tx.composites[ce]; ok {
		return
	}

	tx.captureSampler(ce.cfg)

	image := *ce
	image.spaces = append([]*ProductSpace(nil), ce.spaces...)
	image.states = append([]*State(nil), ce.states...)
	image.envelopes = append([]*Envelope(nil), ce.envelopes...)
	tx.composites[ce] = image

	for _, ps := range ce.spaces {
		if ps != nil {
			tx.spaces[ps] = *ps
		}
	}
	for _, s := range ce.states {
		tx.captureState(s)
	}
	for _, env := range ce.envelopes {
		tx.envelopes[env] = *env
	}
}

func (tx *txn) captureState(s *State) {
	if s == nil {
		return
	}
	if _, ok := tx.states[s]; ok {
		return
	}
	tx.states[s] = *s
	tx.captureSampler(s.cfg)
	if s.envelope != nil {
		if _, ok := tx.envelopes[s.envelope]; !ok {
			tx.envelopes[s.envelope] = *s.envelope
		}
	}
	if s.composite != nil {
		tx.captureComposite(s.composite)
	}
}

func (tx *txn) captureSampler(cfg *Config) {
	if cfg == nil {
		return
	}
	sampler, ok := cfg.Backend().(linalg.SamplerState)
	if !ok {
		return
	}
	if _, ok := tx.samplers[sampler]; ok {
		return
	}
	if state, err := sampler.SaveSampler(); err == nil {
		tx.samplers[sampler] = state
	}
}

func (tx *txn) rollback() {
	for ce, image := range tx.composites {
		*ce = image
	}
	for ps, image := range tx.spaces {
		*ps = image
	}
	for s, image := range tx.states {
		*s = image
	}
	for env, image := range tx.envelopes {
		*env = image
	}
	for sampler, state := range tx.samplers {
		if err := sampler.RestoreSampler(state); err != nil {
			errnie.Info("rollback: sampler not restored: %v", err)
		}
	}
}

/*
atomically runs fn and rolls every participant back when it fails. States
that are not yet tracked by a composite must be passed explicitly.
*/
func atomically(composites []*CompositeEnvelope, states []*State, fn func() error) error {
	tx := begin(composites, states)
	if err := fn(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}
