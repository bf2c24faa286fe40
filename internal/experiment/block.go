package experiment

// Block is an ordered group of trials sharing common settings.
type Block struct {
	session *Session
	number  int
	trials  []*Trial

	Settings *Settings
}

// Number is the block's 1-based position in the session.
func (b *Block) Number() int { return b.number }

// Len returns the number of trials in the block.
func (b *Block) Len() int { return len(b.trials) }

// Trials returns the block's trials in order.
func (b *Block) Trials() []*Trial {
	return append([]*Trial(nil), b.trials...)
}

// CreateTrial appends a new trial to the block.
func (b *Block) CreateTrial() *Trial {
	t := &Trial{
		block:         b,
		numberInBlock: len(b.trials) + 1,
		Settings:      NewSettings(nil, b.Settings),
		Results:       &Results{},
	}
	b.trials = append(b.trials, t)
	return t
}
