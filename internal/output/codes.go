// Package output provides JSON and styled output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK      = 0 // Success
	ExitUsage   = 1 // Invalid arguments or flags
	ExitConfig  = 2 // Store not configured
	ExitAuth    = 3 // Store rejected the key
	ExitNetwork = 6 // Connection/DNS/timeout error
	ExitStore   = 7 // Store returned an error
)

// Error codes for JSON envelope.
const (
	CodeUsage   = "usage"
	CodeConfig  = "config"
	CodeAuth    = "auth_required"
	CodeNetwork = "network"
	CodeStore   = "store_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeConfig:
		return ExitConfig
	case CodeAuth:
		return ExitAuth
	case CodeNetwork:
		return ExitNetwork
	case CodeStore:
		return ExitStore
	default:
		return ExitStore
	}
}
