package commands

// SetPrompts swaps the interactive prompts and returns a restore func.
func SetPrompts(secret func(string, string) (string, error), confirm func(string) (bool, error), tty bool) func() {
	origSecret, origConfirm, origTTY := promptSecret, confirmDangerous, stdinIsTerminal
	promptSecret = secret
	confirmDangerous = confirm
	stdinIsTerminal = func() bool { return tty }
	return func() {
		promptSecret, confirmDangerous, stdinIsTerminal = origSecret, origConfirm, origTTY
	}
}
