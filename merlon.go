/*
	Package merlon holds the shared vocabulary of the merlon toolchain:
	exit codes, error categories, and the event types used to report
	progress and results from long-running commands.

	The interesting work happens in the packages below this one --
	`moddir` knows what a mod project directory looks like,
	`rom` identifies base ROM assets by content,
	and `pack` (with its children) turns a mod's git history into a
	single encrypted distributable.
*/
package merlon

type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                 = ExitCode(0)
	ExitUsage, ErrUsage         = ExitCode(1), ErrorCategory("merlon-usage-error")    // Indicates some piece of user input to a command was invalid and unrunnable.
	ExitPanic                   = ExitCode(2)                                         // Placeholder.  We don't use this.  '2' happens when golang exits due to panic.
	ExitConfig, ErrConfig       = ExitCode(3), ErrorCategory("merlon-config-error")   // The mod dir layout or its merlon.toml is unreadable or unusable.
	ExitNoCommits, ErrNoCommits = ExitCode(4), ErrorCategory("merlon-no-commits")     // The commit range yields an empty patch set.  A usage mistake, not a tooling fault.
	ExitExtract, ErrExtract     = ExitCode(5), ErrorCategory("merlon-extract-failed") // The git patch extraction invocation failed.
	ExitArchive, ErrArchive     = ExitCode(6), ErrorCategory("merlon-archive-failed") // Compressing (or listing) the patch bundle failed.
	ExitEncrypt, ErrEncrypt     = ExitCode(7), ErrorCategory("merlon-encrypt-failed") // Key material was unavailable or the cipher step failed.
	ExitPlace, ErrPlace         = ExitCode(8), ErrorCategory("merlon-place-failed")   // Resolving or writing the final output path failed.
	ExitCancelled, ErrCancelled = ExitCode(9), ErrorCategory("merlon-cancelled")      // The operation timed out or was cancelled.
)

// ExitCodeForCategory maps an error category onto the exit code the
// process should terminate with.  Uncategorized errors map onto a
// generic nonzero code.
func ExitCodeForCategory(category interface{}) ExitCode {
	switch category {
	case nil:
		return ExitSuccess
	case ErrUsage:
		return ExitUsage
	case ErrConfig:
		return ExitConfig
	case ErrNoCommits:
		return ExitNoCommits
	case ErrExtract:
		return ExitExtract
	case ErrArchive:
		return ExitArchive
	case ErrEncrypt:
		return ExitEncrypt
	case ErrPlace:
		return ExitPlace
	case ErrCancelled:
		return ExitCancelled
	default:
		return ExitCode(1)
	}
}
