package qweave

/*
NewFock creates a Fock mode in the number state |photons⟩. The cutoff
defaults to photons+1, but never below 2; WithDimensions overrides it.
*/
func NewFock(photons int, opts ...StateOption) (*State, error) {
	if photons < 0 {
		return nil, newError(ErrValue, "new fock", "negative photon number %d", photons)
	}
	return newState(KindFock, max(photons+1, 2), Label(photons), opts...)
}

// Vacuum is NewFock(0).
func Vacuum(opts ...StateOption) (*State, error) {
	return NewFock(0, opts...)
}

/*
NewFockFrom creates a Fock mode from an explicit Vector or Matrix
representation; the cutoff is its dimension. The state is normalized and
reduced to the cheapest exact encoding.
*/
func NewFockFrom(rep Representation, opts ...StateOption) (*State, error) {
	if rep.level == LevelLabel {
		return NewFock(rep.label, opts...)
	}
	return newState(KindFock, rep.data.Rows(), rep, opts...)
}

// PhotonNumber is the expectation ⟨n⟩ of the mode.
func (s *State) PhotonNumber() (float64, error) {
	if s.kind != KindFock {
		return 0, newError(ErrTypeMismatch, "photon number", "container is %s", s.kind)
	}

	p, err := s.Probabilities()
	if err != nil {
		return 0, err
	}

	var n float64
	for i, v := range p {
		n += float64(i) * v
	}
	return n, nil
}
