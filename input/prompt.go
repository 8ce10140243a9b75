package input

// Prompt carries everything an interactive Prompter needs to ask the user
// about one input: the input's id, its prompt/help text, the
// default that an empty response accepts, and (for ENUM/LIST) the list of
// currently effective options, in display order.
type Prompt struct {
	ID      string
	Text    string
	Help    string
	Default string
	Options []string
}

// Prompter is the host-supplied interactive collaborator. It returns the
// user's raw typed response for re-parsing by the resolver; an empty
// string means "accept the default". Re-prompting on an invalid response
// is the resolver's responsibility, not the Prompter's.
type Prompter interface {
	Prompt(p Prompt) (string, error)
}
