package intent

// Kind enumerates the commands a message can classify to.
type Kind int

const (
	NoMatch Kind = iota
	RequestCode
	Submit
	Check
	RequestSecret
	EasterEggStairs
	EasterEggProtected
	ChallengeInfo
	RequestHelp
)

// Intent is the classified meaning of a user message. Challenge and Hash
// are only set for the kinds that capture them.
type Intent struct {
	Kind      Kind
	Challenge string
	Hash      string
}
